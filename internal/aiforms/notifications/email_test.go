package notifications

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/gomail.v2"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailService(t *testing.T) {
	sender := &fakeSender{}
	es, err := NewEmailServiceWithSender(sender, "noreply@example.com", 2, false)
	require.NoError(t, err)

	require.NoError(t, es.FormCopy("user@example.com", "Survey", []AnswerLine{
		{Question: "Name", Answer: "Ann"},
		{Question: "Colors", Answer: "red, blue"},
	}, time.Now(), "https://forms.example.com/forms/1"))
	require.NoError(t, es.UserBlockedUntil("user@example.com", time.Now().Add(time.Hour)))
	require.NoError(t, es.SupportTicket(dto.SupportTicket{
		ReportedBy: "user@example.com",
		Link:       "https://forms.example.com/templates/1",
		Summary:    "Broken <b>button</b>",
		Priority:   types.PriorityHigh,
		Admins:     []string{"admin@example.com", "root@example.com"},
	}))
	require.NoError(t, es.SupportTicket(dto.SupportTicket{Summary: "nobody to notify"}))

	es.Stop()
	es.Stop()
	assert.ErrorIs(t, es.FormCopy("a@b.c", "x", nil, time.Now(), ""), ErrServiceStopped)

	require.Len(t, sender.sent, 3)
	var subjects []string
	for _, m := range sender.sent {
		subjects = append(subjects, m.GetHeader("Subject")[0])
	}
	assert.Contains(t, subjects, "Your answers: Survey")
	assert.Contains(t, subjects, "[High] Support ticket from user@example.com")
}

func TestDisabledService(t *testing.T) {
	sender := &fakeSender{}
	es, err := NewEmailServiceWithSender(sender, "noreply@example.com", 1, true)
	require.NoError(t, err)
	require.NoError(t, es.UserBlockedUntil("user@example.com", time.Now()))
	es.Stop()
	assert.Empty(t, sender.sent)
}

func TestTemplates(t *testing.T) {
	es, err := NewEmailServiceWithSender(&fakeSender{}, "", 1, true)
	require.NoError(t, err)
	defer es.Stop()

	out, err := es.render("form_copy", struct {
		Title       string
		Answers     []AnswerLine
		SubmittedAt time.Time
		Link        string
	}{"<script>x</script>", []AnswerLine{{"Q", "A"}}, time.Now(), ""})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>x")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "Open the form")
}

func TestFormCopyText(t *testing.T) {
	text, err := FormCopyText("Survey", []AnswerLine{{"Name", "Ann"}}, "https://x.example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "# Survey"))
	assert.Contains(t, text, "**Name:** Ann")
	assert.Contains(t, text, "(https://x.example.com)")
}
