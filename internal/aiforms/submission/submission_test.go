package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func ptr[T any](v T) *T { return &v }

func testTemplate() *dto.Template {
	return &dto.Template{
		TemplateLight: dto.TemplateLight{ID: "tmpl-1", Title: "Feedback"},
		Questions: []dto.Question{
			{ID: "q2", Title: "Colors", Type: types.Checkbox, Order: 1, Options: []string{"A", "B"}},
			{ID: "q1", Title: "Age", Type: types.Integer, IsRequired: true, Order: 0},
		},
	}
}

type fakePersister struct {
	mu       sync.Mutex
	calls    int
	payloads []dto.FormPayload
	err      error
}

func (f *fakePersister) SubmitForm(ctx context.Context, p dto.FormPayload) (*dto.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.Form{ID: "form-1", TemplateID: p.TemplateID, Answers: p.Answers}, nil
}

func TestBuildPayload(t *testing.T) {
	t.Run("integer обязательный и checkbox необязательный", func(t *testing.T) {
		p, err := BuildPayload(testTemplate(), Request{Values: Values{
			"q1": coercion.Text("7"),
			"q2": coercion.Choices("A"),
		}})
		require.NoError(t, err)

		want := dto.FormPayload{
			TemplateID: "tmpl-1",
			Answers: []dto.Answer{
				{QuestionID: "q1", Value: coercion.Value{IntegerValue: ptr(int64(7))}},
				{QuestionID: "q2", Value: coercion.Value{TextValue: ptr("A")}},
			},
		}
		if diff := cmp.Diff(want, p); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("пустой обязательный блокирует отправку", func(t *testing.T) {
		_, err := BuildPayload(testTemplate(), Request{Values: Values{
			"q1": coercion.Text(""),
			"q2": coercion.Choices(),
		}})
		var fe FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, FieldErrors{"q1": MsgRequired}, fe)
	})

	t.Run("отсутствующий ответ дает пустые слоты", func(t *testing.T) {
		p, err := BuildPayload(testTemplate(), Request{Values: Values{"q1": coercion.Number(3)}})
		require.NoError(t, err)
		require.Len(t, p.Answers, 2)
		assert.True(t, p.Answers[1].IsNull())
	})

	t.Run("адрес копии", func(t *testing.T) {
		p, err := BuildPayload(testTemplate(), Request{Values: Values{"q1": coercion.Number(3)}, EmailAddress: "me@example.com"})
		require.NoError(t, err)
		assert.Nil(t, p.EmailAddress)

		p, err = BuildPayload(testTemplate(), Request{Values: Values{"q1": coercion.Number(3)}, SendEmailCopy: true, EmailAddress: " me@example.com "})
		require.NoError(t, err)
		require.NotNil(t, p.EmailAddress)
		assert.Equal(t, "me@example.com", *p.EmailAddress)

		_, err = BuildPayload(testTemplate(), Request{Values: Values{"q1": coercion.Number(3)}, SendEmailCopy: true, EmailAddress: "nope"})
		assert.Equal(t, FieldErrors{EmailField: MsgInvalidEmail}, err)
	})
}

func TestValidate(t *testing.T) {
	questions := []dto.Question{
		{ID: "text", Type: types.SingleLineText, IsRequired: true},
		{ID: "choice", Type: types.SingleChoice, IsRequired: true, Options: []string{"Yes", "No"}},
		{ID: "boxes", Type: types.Checkbox, IsRequired: true, Options: []string{"A"}},
		{ID: "num", Type: types.Integer},
	}

	errs := Validate(questions, Values{"num": coercion.Text("-5")})
	assert.Equal(t, FieldErrors{
		"text":   MsgRequired,
		"choice": MsgSelectOption,
		"boxes":  MsgSelectAtLeastOne,
		"num":    MsgPositiveNumber,
	}, errs)

	errs = Validate(questions, Values{
		"text":   coercion.Text("hi"),
		"choice": coercion.Text("Maybe"),
		"boxes":  coercion.Choices("A", "Z"),
	})
	assert.Equal(t, FieldErrors{"choice": MsgUnknownOption, "boxes": MsgUnknownOption}, errs)

	assert.Contains(t, errs.Error(), "boxes: Unknown option")

	t.Run("нечисловое значение", func(t *testing.T) {
		required := []dto.Question{{ID: "age", Type: types.Integer, IsRequired: true}}
		for _, raw := range []coercion.Raw{coercion.Text("abc"), coercion.Text("NaN"), coercion.Text("1e999"), coercion.Bool(true)} {
			assert.Equal(t, FieldErrors{"age": MsgNotNumber}, Validate(required, Values{"age": raw}), raw.String())
		}
		assert.Empty(t, Validate(required, Values{"age": coercion.Text(" 7.5 ")}))
		assert.Equal(t, FieldErrors{"age": MsgRequired}, Validate(required, Values{"age": coercion.Text("  ")}))

		optional := []dto.Question{{ID: "age", Type: types.Integer}}
		assert.Equal(t, FieldErrors{"age": MsgNotNumber}, Validate(optional, Values{"age": coercion.Text("12abc")}))
	})

	t.Run("вариант с разделителем в названии", func(t *testing.T) {
		boxes := []dto.Question{{ID: "q1", Type: types.Checkbox, IsRequired: true, Options: []string{"Red, dark", "Blue"}}}
		values := Values{"q1": coercion.Choices("Red, dark", "Blue")}
		require.Empty(t, Validate(boxes, values))

		answers := BuildAnswers(boxes, values)
		assert.Empty(t, ValidateAnswers(boxes, answers))
	})
}

func TestValidateAnswers(t *testing.T) {
	tmpl := testTemplate()

	errs := ValidateAnswers(tmpl.Questions, []dto.Answer{
		{QuestionID: "q1", Value: coercion.Value{TextValue: ptr("7")}},
		{QuestionID: "zzz"},
	})
	assert.Equal(t, FieldErrors{"q1": MsgWrongValueType, "zzz": MsgUnknownQuestion}, errs)

	errs = ValidateAnswers(tmpl.Questions, []dto.Answer{
		{QuestionID: "q1", Value: coercion.Value{IntegerValue: ptr(int64(1))}},
		{QuestionID: "q1", Value: coercion.Value{IntegerValue: ptr(int64(2))}},
	})
	assert.Equal(t, FieldErrors{"q1": MsgDuplicateAnswer}, errs)

	errs = ValidateAnswers(tmpl.Questions, []dto.Answer{{QuestionID: "q2", Value: coercion.Value{TextValue: ptr("A, B")}}})
	assert.Equal(t, FieldErrors{"q1": MsgRequired}, errs)

	errs = ValidateAnswers(tmpl.Questions, []dto.Answer{{QuestionID: "q1", Value: coercion.Value{IntegerValue: ptr(int64(4))}}})
	assert.Empty(t, errs)

	normalized := NormalizeAnswers(tmpl.Questions, []dto.Answer{{QuestionID: "q2", Value: coercion.Value{TextValue: ptr("A")}}})
	require.Len(t, normalized, 2)
	assert.Equal(t, "q1", normalized[0].QuestionID)
	assert.True(t, normalized[0].IsNull())
}

func TestSubmitter(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("валидация до сетевого вызова", func(t *testing.T) {
		p := &fakePersister{}
		s := NewSubmitter(p, nil)
		_, err := s.Submit(context.Background(), testTemplate(), Request{})
		var fe FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Zero(t, p.calls)
		assert.Equal(t, StateIdle, s.State())
		assert.True(t, s.Editable())
	})

	t.Run("ошибка сохранения", func(t *testing.T) {
		p := &fakePersister{err: errors.New("template not found")}
		s := NewSubmitter(p, nil)
		_, err := s.Submit(context.Background(), testTemplate(), Request{Values: Values{"q1": coercion.Text("1")}})
		assert.EqualError(t, err, "template not found")
		assert.Equal(t, StateFailed, s.State())
		assert.EqualError(t, s.Err(), "template not found")
		assert.True(t, s.Editable())

		p.err = nil
		_, err = s.Submit(context.Background(), testTemplate(), Request{Values: Values{"q1": coercion.Text("1")}})
		require.NoError(t, err)
		assert.Equal(t, 2, p.calls)
		s.Close()
	})

	t.Run("переход после успеха", func(t *testing.T) {
		navigated := make(chan string, 1)
		s := NewSubmitter(&fakePersister{}, func(path string) { navigated <- path }, WithRedirectDelay(10*time.Millisecond))
		form, err := s.Submit(context.Background(), testTemplate(), Request{Values: Values{"q1": coercion.Text("1")}})
		require.NoError(t, err)
		assert.Equal(t, "form-1", form.ID)
		assert.Equal(t, StateSucceeded, s.State())
		assert.False(t, s.Editable())

		select {
		case path := <-navigated:
			assert.Equal(t, "/forms/tmpl-1/success", path)
		case <-time.After(time.Second):
			t.Fatal("redirect did not happen")
		}

		_, err = s.Submit(context.Background(), testTemplate(), Request{Values: Values{"q1": coercion.Text("1")}})
		assert.ErrorIs(t, err, ErrAlreadySubmitting)
		s.Close()
	})

	t.Run("отмена контекста отменяет переход", func(t *testing.T) {
		navigated := make(chan string, 1)
		ctx, cancel := context.WithCancel(context.Background())
		s := NewSubmitter(&fakePersister{}, func(path string) { navigated <- path }, WithRedirectDelay(50*time.Millisecond))
		_, err := s.Submit(ctx, testTemplate(), Request{Values: Values{"q1": coercion.Text("1")}})
		require.NoError(t, err)
		cancel()

		select {
		case <-navigated:
			t.Fatal("redirect after cancel")
		case <-time.After(150 * time.Millisecond):
		}
		s.Close()
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}
