package editor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

const (
	MsgTitleRequired    = "Title is required"
	MsgQuestionRequired = "Question is required"
	MsgOptionsRequired  = "At least one option is required"
	MsgUnknownTopic     = "Unknown topic"
	MsgUnknownType      = "Unknown question type"
)

// ValidationError ошибка поля шаблона. Question равен -1 для полей самого шаблона.
type ValidationError struct {
	Field    string
	Question int
	Message  string
}

func (e ValidationError) Error() string {
	if e.Question < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("questions[%d].%s: %s", e.Question, e.Field, e.Message)
}

// Validate проверяет шаблон перед сохранением и возвращает все найденные ошибки.
// Пустой результат означает, что шаблон можно сохранять.
func (d *Document) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(d.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Question: -1, Message: MsgTitleRequired})
	}
	if d.Topic != "" && !slices.Contains(Topics, d.Topic) {
		errs = append(errs, ValidationError{Field: "topic", Question: -1, Message: MsgUnknownTopic})
	}
	for i, q := range d.Questions {
		errs = append(errs, validateQuestion(i, q.Title, q.Type, q.Options)...)
	}
	return errs
}

// ValidatePayload проверяет нормализованные данные, пришедшие от клиента, по тем же правилам.
func ValidatePayload(p dto.TemplatePayload) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Question: -1, Message: MsgTitleRequired})
	}
	for i, q := range p.Questions {
		errs = append(errs, validateQuestion(i, q.Title, q.Type, q.Options)...)
	}
	return errs
}

func validateQuestion(i int, title string, qt types.QuestionType, options []string) []ValidationError {
	var errs []ValidationError
	if !qt.Valid() {
		errs = append(errs, ValidationError{Field: "type", Question: i, Message: MsgUnknownType})
	}
	if strings.TrimSpace(title) == "" {
		errs = append(errs, ValidationError{Field: "title", Question: i, Message: MsgQuestionRequired})
	}
	if qt.HasOptions() && len(nonEmpty(options)) == 0 {
		errs = append(errs, ValidationError{Field: "options", Question: i, Message: MsgOptionsRequired})
	}
	return errs
}

func nonEmpty(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
