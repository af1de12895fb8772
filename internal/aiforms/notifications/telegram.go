package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const telegramSendTimeout = 5 * time.Second

// MessageSender отправляет сообщения в чаты. *bot.Bot реализует этот интерфейс.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramService дублирует администраторам новые обращения в поддержку в чаты Telegram
type TelegramService struct {
	sender   MessageSender
	chats    []int64
	disabled bool
}

func NewTelegramService(cfg *config.Config) (*TelegramService, error) {
	chats, err := ParseChatIDs(cfg.TelegramAdminChats)
	if err != nil {
		return nil, err
	}
	if cfg.TelegramBotToken == "" || len(chats) == 0 {
		slog.Info("Telegram notifications disabled")
		return &TelegramService{disabled: true}, nil
	}

	b, err := bot.New(cfg.TelegramBotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("connect to telegram bot: %w", err)
	}
	slog.Info("Telegram notifications enabled", "chats", len(chats))
	return NewTelegramServiceWithSender(b, chats), nil
}

func NewTelegramServiceWithSender(sender MessageSender, chats []int64) *TelegramService {
	return &TelegramService{sender: sender, chats: chats, disabled: sender == nil || len(chats) == 0}
}

// ParseChatIDs разбирает список id чатов через запятую
func ParseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SupportTicket отправляет обращение во все чаты администраторов.
// Ошибка одного чата не прерывает отправку в остальные, ошибки возвращаются вместе.
func (ts *TelegramService) SupportTicket(ctx context.Context, ticket dto.SupportTicket) error {
	if ts == nil || ts.disabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, telegramSendTimeout)
	defer cancel()

	text := SupportTicketText(ticket)
	var errs []error
	for _, chat := range ts.chats {
		if _, err := ts.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: text}); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}

// SupportTicketText текст уведомления об обращении
func SupportTicketText(ticket dto.SupportTicket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Новое обращение в поддержку [%s]\n", ticket.Priority)
	fmt.Fprintf(&b, "От: %s\n", ticket.ReportedBy)
	if ticket.Template != "" {
		fmt.Fprintf(&b, "Страница: %s\n", ticket.Template)
	}
	if ticket.Link != "" {
		fmt.Fprintf(&b, "Ссылка: %s\n", ticket.Link)
	}
	b.WriteString("\n")
	b.WriteString(ticket.Summary)
	return b.String()
}
