package submission

import (
	"slices"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
)

// Request - введенные пользователем данные формы
type Request struct {
	TemplateID    string
	Values        Values
	SendEmailCopy bool
	EmailAddress  string
}

// BuildAnswers формирует ровно один ответ на каждый вопрос в порядке order.
// Для вопроса без значения возвращается ответ со всеми пустыми слотами.
func BuildAnswers(questions []dto.Question, values Values) []dto.Answer {
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b dto.Question) int { return a.Order - b.Order })

	answers := make([]dto.Answer, 0, len(sorted))
	for _, q := range sorted {
		a := dto.Answer{QuestionID: q.ID}
		if raw, ok := values[q.ID]; ok && raw.Kind() != coercion.KindAbsent {
			a.Value = coercion.Encode(q.Type, raw)
		}
		answers = append(answers, a)
	}
	return answers
}

// NormalizeAnswers дополняет набор ответов пустыми ответами на пропущенные вопросы и упорядочивает по order.
func NormalizeAnswers(questions []dto.Question, answers []dto.Answer) []dto.Answer {
	byQuestion := make(map[string]dto.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b dto.Question) int { return a.Order - b.Order })

	out := make([]dto.Answer, 0, len(sorted))
	for _, q := range sorted {
		a, ok := byQuestion[q.ID]
		if !ok {
			a = dto.Answer{QuestionID: q.ID}
		}
		out = append(out, a)
	}
	return out
}

// BuildPayload проверяет форму и собирает тело запроса на отправку.
// Адрес для копии попадает в запрос только вместе с флагом SendEmailCopy.
func BuildPayload(tmpl *dto.Template, req Request) (dto.FormPayload, error) {
	errs := Validate(tmpl.Questions, req.Values)
	if msg := ValidateEmailCopy(req.SendEmailCopy, req.EmailAddress); msg != "" {
		errs[EmailField] = msg
	}
	if len(errs) > 0 {
		return dto.FormPayload{}, errs
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = tmpl.ID
	}
	payload := dto.FormPayload{
		TemplateID:    templateID,
		Answers:       BuildAnswers(tmpl.Questions, req.Values),
		SendEmailCopy: req.SendEmailCopy,
	}
	if req.SendEmailCopy {
		email := strings.TrimSpace(req.EmailAddress)
		payload.EmailAddress = &email
	}
	return payload, nil
}
