package dto

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
)

type Answer struct {
	ID         string `json:"id,omitempty"`
	QuestionID string `json:"questionId"`
	coercion.Value
}

type Form struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"templateId"`
	Template      *TemplateLight `json:"template,omitempty" extensions:"x-nullable"`
	User          *UserLight     `json:"user,omitempty" extensions:"x-nullable"`
	Answers       []Answer       `json:"answers"`
	SendEmailCopy bool           `json:"sendEmailCopy"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// FormPayload - тело запроса на отправку заполненной формы.
// EmailAddress передается только вместе с SendEmailCopy.
type FormPayload struct {
	TemplateID    string   `json:"templateId"`
	Answers       []Answer `json:"answers"`
	SendEmailCopy bool     `json:"sendEmailCopy"`
	EmailAddress  *string  `json:"emailAddress,omitempty"`
}

// PaginatedResponse ответ списка с пагинацией по страницам
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}
