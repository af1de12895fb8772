// Структуры данных (DTO) шаблонов, вопросов, тегов и статистики для передачи между сервером и клиентом.
package dto

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

type Question struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        types.QuestionType `json:"type"`
	IsRequired  bool               `json:"isRequired"`
	ShowInTable bool               `json:"showInTable"`
	Order       int                `json:"order"`
	Options     []string           `json:"options"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TagCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type TemplateLight struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Topic       string       `json:"topic"`
	ImageURL    *string      `json:"imageUrl,omitempty" extensions:"x-nullable"`
	Access      types.Access `json:"access"`
	Tags        []string     `json:"tags"`
	Author      *UserLight   `json:"author,omitempty" extensions:"x-nullable"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	FormsCount  int64        `json:"formsCount"`
	LikesCount  int64        `json:"likesCount"`
}

type Template struct {
	TemplateLight
	Questions    []Question  `json:"questions"`
	AllowedUsers []UserLight `json:"allowedUsers"`
	LikedByMe    bool        `json:"likedByMe"`
}

// QuestionPayload - вопрос в составе запроса на создание или изменение шаблона
type QuestionPayload struct {
	ID          string             `json:"id,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        types.QuestionType `json:"type"`
	IsRequired  bool               `json:"isRequired"`
	ShowInTable bool               `json:"showInTable"`
	Order       int                `json:"order"`
	Options     []string           `json:"options"`
}

// TemplatePayload - нормализованное тело запроса на сохранение шаблона
type TemplatePayload struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Topic        string            `json:"topic"`
	ImageURL     *string           `json:"imageUrl,omitempty"`
	Access       types.Access      `json:"access"`
	Tags         []string          `json:"tags" validate:"max=30,dive,tagName"`
	AllowedUsers []string          `json:"allowedUsers"`
	Questions    []QuestionPayload `json:"questions"`
}

type SearchResult struct {
	Templates []TemplateLight `json:"templates"`
	Total     int64           `json:"total"`
}

type QuestionStats struct {
	QuestionID    string             `json:"questionId"`
	QuestionTitle string             `json:"questionTitle"`
	Type          types.QuestionType `json:"type"`
	Stats         map[string]any     `json:"stats"`
}

type TemplateStats struct {
	FormsCount     int64           `json:"formsCount"`
	LikesCount     int64           `json:"likesCount"`
	QuestionsStats []QuestionStats `json:"questionsStats"`
}

type Comment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	User      *UserLight `json:"user,omitempty" extensions:"x-nullable"`
}

type CommentRequest struct {
	Content string `json:"content" validate:"max=5000"`
}

type LikeStatus struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likesCount"`
}

type ImageUploadResponse struct {
	URL string `json:"url"`
}
