package editor

import (
	"math/rand"
	"testing"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDenseOrder(t *testing.T, d *Document) {
	t.Helper()
	for i, q := range d.Questions {
		assert.Equal(t, i, q.Order)
	}
}

func TestAddQuestion(t *testing.T) {
	d := New()

	idx, err := d.AddQuestion(types.SingleLineText)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	q := d.Questions[idx]
	assert.Equal(t, "", q.Title)
	assert.False(t, q.IsRequired)
	assert.True(t, q.ShowInTable)
	assert.Equal(t, 0, q.Order)
	assert.Nil(t, q.Options)
	assert.True(t, q.Temporary)
	assert.NotEmpty(t, q.ID)

	idx, err = d.AddQuestion(types.Checkbox)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Questions[idx].Order)
	assert.Equal(t, []string{"Option 1"}, d.Questions[idx].Options)

	idx, err = d.AddQuestion(types.SingleChoice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Option 1"}, d.Questions[idx].Options)

	idx, err = d.AddQuestion(types.QuestionType("DATE"))
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, -1, idx)
	assert.Len(t, d.Questions, 3)

	t.Run("индекс остается верным после роста списка", func(t *testing.T) {
		d := New()
		first, err := d.AddQuestion(types.SingleLineText)
		require.NoError(t, err)
		for range 20 {
			_, err := d.AddQuestion(types.Integer)
			require.NoError(t, err)
		}
		require.NoError(t, d.UpdateQuestion(first, func(q *Question) { q.Title = "Name" }))
		assert.Equal(t, "Name", d.Questions[0].Title)
		assert.Equal(t, types.SingleLineText, d.Questions[0].Type)
	})
}

func TestRemoveQuestion(t *testing.T) {
	d := New()
	for _, qt := range []types.QuestionType{types.SingleLineText, types.Integer, types.Checkbox} {
		_, err := d.AddQuestion(qt)
		require.NoError(t, err)
	}
	first, last := d.Questions[0].ID, d.Questions[2].ID

	require.NoError(t, d.RemoveQuestion(1))
	require.Len(t, d.Questions, 2)
	assert.Equal(t, first, d.Questions[0].ID)
	assert.Equal(t, last, d.Questions[1].ID)
	assertDenseOrder(t, d)

	assert.ErrorIs(t, d.RemoveQuestion(5), ErrIndexOutOfRange)
	assert.ErrorIs(t, d.RemoveQuestion(-1), ErrIndexOutOfRange)
}

func TestMoveQuestion(t *testing.T) {
	d := New()
	for i := 0; i < 4; i++ {
		_, err := d.AddQuestion(types.SingleLineText)
		require.NoError(t, err)
		d.Questions[i].Title = string(rune('A' + i))
	}

	require.NoError(t, d.MoveQuestion(0, 3))
	titles := func() string {
		s := ""
		for _, q := range d.Questions {
			s += q.Title
		}
		return s
	}
	assert.Equal(t, "BCDA", titles())
	assertDenseOrder(t, d)

	require.NoError(t, d.MoveQuestion(3, 1))
	assert.Equal(t, "BACD", titles())
	assertDenseOrder(t, d)

	assert.ErrorIs(t, d.MoveQuestion(0, 4), ErrIndexOutOfRange)
}

func TestOrderInvariantRandomSequence(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	d := New()
	for step := 0; step < 500; step++ {
		switch rnd.Intn(3) {
		case 0:
			_, err := d.AddQuestion(types.QuestionTypes[rnd.Intn(len(types.QuestionTypes))])
			require.NoError(t, err)
		case 1:
			if len(d.Questions) > 0 {
				require.NoError(t, d.RemoveQuestion(rnd.Intn(len(d.Questions))))
			}
		case 2:
			if len(d.Questions) > 0 {
				require.NoError(t, d.MoveQuestion(rnd.Intn(len(d.Questions)), rnd.Intn(len(d.Questions))))
			}
		}
		assertDenseOrder(t, d)
	}
}

func TestUpdateQuestionAndOptions(t *testing.T) {
	d := New()
	_, err := d.AddQuestion(types.SingleLineText)
	require.NoError(t, err)
	id := d.Questions[0].ID

	require.NoError(t, d.UpdateQuestion(0, func(q *Question) {
		q.Title = "Favourite color"
		q.Type = types.SingleChoice
		q.Order = 10
		q.ID = "hijack"
	}))
	q := d.Questions[0]
	assert.Equal(t, id, q.ID)
	assert.Equal(t, 0, q.Order)
	assert.Equal(t, []string{"Option 1"}, q.Options)

	require.NoError(t, d.AddOption(0))
	assert.Equal(t, []string{"Option 1", ""}, d.Questions[0].Options)
	require.NoError(t, d.RemoveOption(0, 1))
	assert.ErrorIs(t, d.RemoveOption(0, 0), ErrLastOption)
	assert.ErrorIs(t, d.RemoveOption(0, 3), ErrOptionOutOfRange)

	require.NoError(t, d.UpdateQuestion(0, func(q *Question) { q.Type = types.Integer }))
	assert.Nil(t, d.Questions[0].Options)
	assert.ErrorIs(t, d.AddOption(0), ErrNoOptions)

	assert.ErrorIs(t, d.UpdateQuestion(0, func(q *Question) { q.Type = "DATE" }), ErrUnknownType)
}

func TestSetAccess(t *testing.T) {
	d := New()
	require.NoError(t, d.SetAccess(types.Restricted, "u1", "u2", "u1"))
	assert.Equal(t, []string{"u1", "u2"}, d.AllowedUsers)
	assert.Equal(t, []string{"u1", "u2"}, d.ToNormalizedPayload().AllowedUsers)

	t.Run("PUBLIC сохраняет список в памяти", func(t *testing.T) {
		require.NoError(t, d.SetAccess(types.Public))
		assert.Equal(t, []string{"u1", "u2"}, d.AllowedUsers)
		assert.Empty(t, d.ToNormalizedPayload().AllowedUsers)
	})

	t.Run("RESTRICTED без пользователей", func(t *testing.T) {
		empty := New()
		require.NoError(t, empty.SetAccess(types.Restricted))
		p := empty.ToNormalizedPayload()
		assert.Equal(t, types.Restricted, p.Access)
		assert.Empty(t, p.AllowedUsers)
	})

	t.Run("только автор после очистки списка", func(t *testing.T) {
		d := New()
		require.NoError(t, d.SetAccess(types.Restricted, "u1"))
		require.NoError(t, d.SetAccess(types.Restricted))
		assert.Equal(t, []string{"u1"}, d.AllowedUsers)

		d.ClearAllowedUsers()
		p := d.ToNormalizedPayload()
		assert.Equal(t, types.Restricted, p.Access)
		assert.Empty(t, p.AllowedUsers)
	})

	assert.ErrorIs(t, d.SetAccess("PRIVATE"), ErrInvalidAccess)
}

func TestTags(t *testing.T) {
	d := New()
	d.SetTags("Survey", "survey", "", "Survey")
	assert.Equal(t, []string{"Survey", "survey"}, d.Tags)
	d.AddTag("quiz")
	d.AddTag("Survey")
	assert.Equal(t, []string{"Survey", "survey", "quiz"}, d.Tags)
	d.RemoveTag("survey")
	assert.Equal(t, []string{"Survey", "quiz"}, d.Tags)
}

func TestValidate(t *testing.T) {
	d := New()
	_, _ = d.AddQuestion(types.SingleLineText)
	_, _ = d.AddQuestion(types.Checkbox)
	d.Questions[1].Title = "Pick"
	d.Questions[1].Options = []string{"", "  "}
	d.Topic = "Sports"

	errs := d.Validate()
	require.Len(t, errs, 4)
	assert.Equal(t, ValidationError{Field: "title", Question: -1, Message: MsgTitleRequired}, errs[0])
	assert.Equal(t, "topic", errs[1].Field)
	assert.Equal(t, ValidationError{Field: "title", Question: 0, Message: MsgQuestionRequired}, errs[2])
	assert.Equal(t, ValidationError{Field: "options", Question: 1, Message: MsgOptionsRequired}, errs[3])
	assert.Equal(t, "questions[1].options: At least one option is required", errs[3].Error())

	d.Title = "Feedback"
	d.Topic = "Survey"
	d.Questions[0].Title = "Name"
	d.Questions[1].Options = []string{"Yes"}
	assert.Empty(t, d.Validate())
}

func TestToNormalizedPayload(t *testing.T) {
	d := FromTemplate(&dto.Template{
		TemplateLight: dto.TemplateLight{ID: "t1", Title: "T", Access: types.Public, Tags: []string{"a", "a", "B"}},
		Questions: []dto.Question{
			{ID: "q2", Title: "Second", Type: types.Checkbox, Order: 5, Options: []string{"X", "", "Y"}},
			{ID: "q1", Title: "First", Type: types.Integer, Order: 2},
		},
	})
	_, err := d.AddQuestion(types.MultiLineText)
	require.NoError(t, err)

	p := d.ToNormalizedPayload()
	require.Len(t, p.Questions, 3)
	assert.Equal(t, "q1", p.Questions[0].ID)
	assert.Equal(t, 0, p.Questions[0].Order)
	assert.NotNil(t, p.Questions[0].Options)
	assert.Empty(t, p.Questions[0].Options)
	assert.Equal(t, []string{"X", "Y"}, p.Questions[1].Options)
	assert.Empty(t, p.Questions[2].ID, "temporary ids are not sent")
	assert.Equal(t, 2, p.Questions[2].Order)
	assert.Equal(t, []string{"a", "B"}, p.Tags)

	errs := ValidatePayload(p)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Question)
}
