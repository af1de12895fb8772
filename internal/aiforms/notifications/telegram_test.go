package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu     sync.Mutex
	sent   []*bot.SendMessageParams
	failOn int64
}

func (f *fakeBot) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.ChatID == f.failOn {
		return nil, errors.New("chat not found")
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: len(f.sent)}, nil
}

var testTicket = dto.SupportTicket{
	ReportedBy: "user@example.com",
	Template:   "Feedback",
	Link:       "https://forms.example.com/templates/1",
	Summary:    "Cannot export",
	Priority:   types.PriorityHigh,
	CreatedAt:  time.Unix(1700000000, 0),
}

func TestParseChatIDs(t *testing.T) {
	ids, err := ParseChatIDs(" 42, -1001, ,7")
	require.NoError(t, err)
	assert.Equal(t, []int64{42, -1001, 7}, ids)

	ids, err = ParseChatIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseChatIDs("42,admin")
	assert.ErrorContains(t, err, `"admin"`)
}

func TestTelegramService(t *testing.T) {
	t.Run("отправка во все чаты", func(t *testing.T) {
		fb := &fakeBot{}
		ts := NewTelegramServiceWithSender(fb, []int64{1, 2})
		require.NoError(t, ts.SupportTicket(context.Background(), testTicket))

		require.Len(t, fb.sent, 2)
		assert.Equal(t, int64(1), fb.sent[0].ChatID)
		assert.Equal(t, int64(2), fb.sent[1].ChatID)
		assert.Contains(t, fb.sent[0].Text, "[High]")
		assert.Contains(t, fb.sent[0].Text, "user@example.com")
		assert.Contains(t, fb.sent[0].Text, "Cannot export")
	})

	t.Run("ошибка одного чата", func(t *testing.T) {
		fb := &fakeBot{failOn: 1}
		ts := NewTelegramServiceWithSender(fb, []int64{1, 2})
		err := ts.SupportTicket(context.Background(), testTicket)
		assert.ErrorContains(t, err, "chat 1")
		assert.Len(t, fb.sent, 1)
	})

	t.Run("без токена уведомления выключены", func(t *testing.T) {
		ts, err := NewTelegramService(&config.Config{TelegramAdminChats: "42"})
		require.NoError(t, err)
		assert.NoError(t, ts.SupportTicket(context.Background(), testTicket))

		var nilService *TelegramService
		assert.NoError(t, nilService.SupportTicket(context.Background(), testTicket))
	})

	t.Run("некорректный список чатов", func(t *testing.T) {
		_, err := NewTelegramService(&config.Config{TelegramBotToken: "123:abc", TelegramAdminChats: "x"})
		assert.Error(t, err)
	})
}

func TestSupportTicketText(t *testing.T) {
	text := SupportTicketText(dto.SupportTicket{ReportedBy: "a@example.com", Summary: "Help", Priority: types.PriorityLow})
	assert.Equal(t, "Новое обращение в поддержку [Low]\nОт: a@example.com\n\nHelp", text)
}
