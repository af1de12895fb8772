// Проверка и сборка заполненной формы: обязательные поля, приведение ответов к типам вопросов, тело запроса.
//
// Проверки выполняются до любого сетевого вызова. Ошибки полей возвращаются картой questionId -> сообщение.
package submission

import (
	"fmt"
	"net/mail"
	"slices"
	"sort"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

const (
	MsgRequired         = "This field is required"
	MsgSelectOption     = "Please select an option"
	MsgSelectAtLeastOne = "Please select at least one option"
	MsgPositiveNumber   = "Must be a positive number"
	MsgNotNumber        = "Must be a number"
	MsgUnknownOption    = "Unknown option"
	MsgWrongValueType   = "Value does not match question type"
	MsgUnknownQuestion  = "Question does not belong to the template"
	MsgDuplicateAnswer  = "Question answered more than once"
	MsgInvalidEmail     = "Enter a valid email address"

	// EmailField ключ ошибки адреса для копии ответов
	EmailField = "emailAddress"
)

// FieldErrors ошибки валидации по полям формы
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Values - сырые значения полей формы по id вопроса
type Values map[string]coercion.Raw

// Validate проверяет значения полей перед отправкой.
//
// Параметры:
//   - questions: вопросы шаблона
//   - values: введенные значения, отсутствующий ключ равнозначен пустому полю
//
// Возвращает:
//   - FieldErrors: пустая карта, если ошибок нет
func Validate(questions []dto.Question, values Values) FieldErrors {
	errs := FieldErrors{}
	for _, q := range questions {
		raw, ok := values[q.ID]
		if !ok {
			raw = coercion.Absent()
		}
		if msg := validateRaw(q, raw); msg != "" {
			errs[q.ID] = msg
		}
	}
	return errs
}

func validateRaw(q dto.Question, raw coercion.Raw) string {
	if raw.IsEmpty() {
		if !q.IsRequired {
			return ""
		}
		switch q.Type {
		case types.SingleChoice:
			return MsgSelectOption
		case types.Checkbox:
			return MsgSelectAtLeastOne
		}
		return MsgRequired
	}

	switch q.Type {
	case types.Integer:
		if !raw.IsNumber() {
			return MsgNotNumber
		}
		if raw.Int() < 0 {
			return MsgPositiveNumber
		}
	case types.SingleChoice:
		selected := raw.Selected()
		if len(selected) != 1 {
			return MsgSelectOption
		}
		if !slices.Contains(q.Options, selected[0]) {
			return MsgUnknownOption
		}
	case types.Checkbox:
		for _, s := range raw.Selected() {
			if !slices.Contains(q.Options, s) {
				return MsgUnknownOption
			}
		}
	}
	return ""
}

// ValidateEmailCopy проверяет адрес для копии ответов, если копия запрошена.
func ValidateEmailCopy(send bool, address string) string {
	if !send {
		return ""
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return MsgRequired
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return MsgInvalidEmail
	}
	return ""
}

// ValidateAnswers проверяет уже типизированные ответы, полученные сервером.
// Допускается не больше одного ответа на вопрос, слот значения должен соответствовать типу вопроса.
func ValidateAnswers(questions []dto.Question, answers []dto.Answer) FieldErrors {
	errs := FieldErrors{}
	byID := make(map[string]dto.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	values := make(Values, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			errs[a.QuestionID] = MsgUnknownQuestion
			continue
		}
		if _, dup := values[a.QuestionID]; dup {
			errs[a.QuestionID] = MsgDuplicateAnswer
			continue
		}
		if !slotMatches(q.Type, a.Value) {
			errs[a.QuestionID] = MsgWrongValueType
			continue
		}
		values[a.QuestionID] = coercion.DecodeWithOptions(q.Type, q.Options, a.Value)
	}

	for id, msg := range Validate(questions, values) {
		if _, exists := errs[id]; !exists {
			errs[id] = msg
		}
	}
	return errs
}

func slotMatches(qt types.QuestionType, v coercion.Value) bool {
	if v.BooleanValue != nil {
		return false
	}
	if qt == types.Integer {
		return v.TextValue == nil
	}
	return v.IntegerValue == nil
}
