package dao

import (
	"math"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TemplateStats собирает статистику ответов по каждому вопросу шаблона.
//
// Для INTEGER считаются count, min, max, average, для вариантов выбора количество по каждому варианту,
// для текстовых вопросов количество непустых ответов (filled).
//
// Параметры:
//   - db: соединение с базой
//   - t: шаблон с загруженными вопросами и счетчиками
//
// Возвращает:
//   - *dto.TemplateStats: статистика шаблона
//   - error: ошибка выборки ответов
func TemplateStats(db *gorm.DB, t *Template) (*dto.TemplateStats, error) {
	var answers []Answer
	err := db.Joins("JOIN forms ON forms.id = answers.form_id").
		Where("forms.template_id = ?", t.ID).
		Find(&answers).Error
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uuid.UUID][]coercion.Value)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a.Value)
	}

	questions := t.SortedQuestions()
	res := &dto.TemplateStats{
		FormsCount:     t.FormsCount,
		LikesCount:     t.LikesCount,
		QuestionsStats: make([]dto.QuestionStats, 0, len(questions)),
	}
	for _, q := range questions {
		res.QuestionsStats = append(res.QuestionsStats, dto.QuestionStats{
			QuestionID:    q.ID.String(),
			QuestionTitle: q.Title,
			Type:          q.Type,
			Stats:         questionStats(q, byQuestion[q.ID]),
		})
	}
	return res, nil
}

func questionStats(q Question, values []coercion.Value) map[string]any {
	switch {
	case q.Type == types.Integer:
		var count int64
		var sum float64
		minV, maxV := int64(math.MaxInt64), int64(math.MinInt64)
		for _, v := range values {
			if v.IntegerValue == nil {
				continue
			}
			n := *v.IntegerValue
			count++
			sum += float64(n)
			minV = min(minV, n)
			maxV = max(maxV, n)
		}
		if count == 0 {
			return map[string]any{"count": 0, "min": nil, "max": nil, "average": nil}
		}
		return map[string]any{"count": count, "min": minV, "max": maxV, "average": sum / float64(count)}

	case q.Type.HasOptions():
		options := make(map[string]int64, len(q.Options))
		for _, o := range q.Options {
			options[o] = 0
		}
		var count int64
		for _, v := range values {
			selected := coercion.DecodeWithOptions(q.Type, q.Options, v).Selected()
			if len(selected) == 0 {
				continue
			}
			count++
			for _, s := range selected {
				options[s]++
			}
		}
		return map[string]any{"count": count, "options": options}

	default:
		var count, filled int64
		for _, v := range values {
			count++
			if v.TextValue != nil && *v.TextValue != "" {
				filled++
			}
		}
		return map[string]any{"count": count, "filled": filled}
	}
}
