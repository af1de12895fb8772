// Проверка тел запросов через go-playground/validator.
//
// Кроме стандартных правил регистрируются:
//   - personName: имя пользователя, буквы, пробел, дефис, апостроф и точка, до 100 символов.
//   - tagName: имя тега, буквы, цифры, пробел, дефис и подчеркивание, до 50 символов.
//   - priority: приоритет обращения в поддержку (High, Average, Low без учета регистра).
package aiforms

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/go-playground/validator"
)

var (
	personNameRe = regexp.MustCompile(`^[\p{L}][\p{L} .'\-]*$`)
	tagNameRe    = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _\-]*$`)
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	if err := v.RegisterValidation("personName", personNameValidator); err != nil {
		return nil
	}
	if err := v.RegisterValidation("tagName", tagNameValidator); err != nil {
		return nil
	}
	if err := v.RegisterValidation("priority", priorityValidator); err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		if _, ok := err.(validator.ValidationErrors); !ok {
			return nil
		}
		return err
	}
	return nil
}

func personNameValidator(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	l := utf8.RuneCountInString(value)
	return l >= 1 && l <= 100 && personNameRe.MatchString(value)
}

func tagNameValidator(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	l := utf8.RuneCountInString(value)
	return l >= 1 && l <= 50 && tagNameRe.MatchString(value)
}

func priorityValidator(fl validator.FieldLevel) bool {
	_, ok := types.ParsePriority(fl.Field().String())
	return ok
}
