package editor

import (
	"slices"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/internal/aiforms/utils"
)

// ToNormalizedPayload собирает данные для сохранения: вопросы по возрастанию order, варианты ответа
// по умолчанию пустой список, теги без повторов, список допуска только для RESTRICTED.
func (d *Document) ToNormalizedPayload() dto.TemplatePayload {
	questions := slices.Clone(d.Questions)
	slices.SortStableFunc(questions, func(a, b Question) int { return a.Order - b.Order })

	p := dto.TemplatePayload{
		Title:        d.Title,
		Description:  d.Description,
		Topic:        d.Topic,
		ImageURL:     d.ImageURL,
		Access:       d.Access,
		Tags:         utils.UniqueStrings(d.Tags),
		AllowedUsers: []string{},
		Questions:    make([]dto.QuestionPayload, 0, len(questions)),
	}
	if p.Access == types.Restricted {
		p.AllowedUsers = utils.UniqueStrings(d.AllowedUsers)
	}

	for i, q := range questions {
		qp := dto.QuestionPayload{
			Title:       q.Title,
			Description: q.Description,
			Type:        q.Type,
			IsRequired:  q.IsRequired,
			ShowInTable: q.ShowInTable,
			Order:       i,
			Options:     []string{},
		}
		if !q.Temporary {
			qp.ID = q.ID
		}
		if q.Type.HasOptions() {
			qp.Options = nonEmpty(q.Options)
		}
		p.Questions = append(p.Questions, qp)
	}
	return p
}
