// Отправка писем: копия ответов на форму, уведомление о блокировке входа, новые заявки в поддержку.
//
// Письма отправляются пулом воркеров (errgroup) из очереди. HTML шаблоны встраиваются в бинарь
// и минифицируются при загрузке, текстовая часть письма строится в Markdown.
package notifications

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/microcosm-cc/bluemonday"
	md "github.com/nao1215/markdown"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"golang.org/x/sync/errgroup"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*
var defaultTemplates embed.FS

var htmlStripPolicy = bluemonday.StrictPolicy()

var ErrServiceStopped = errors.New("email service stopped")

// Sender отправляет готовые сообщения. *gomail.Dialer реализует этот интерфейс.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	sender   Sender
	from     string
	disabled bool

	templates *template.Template

	mu        sync.RWMutex
	stopped   bool
	emailChan chan *gomail.Message
	eg        errgroup.Group
}

type mail struct {
	To          []string
	Subject     string
	Content     string
	TextContent string
}

// AnswerLine - строка письма с копией ответов
type AnswerLine struct {
	Question string
	Answer   string
}

func NewEmailService(cfg *config.Config) (*EmailService, error) {
	d := gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword)
	return NewEmailServiceWithSender(d, cfg.EmailFrom, cfg.EmailWorkers, cfg.EmailDisabled)
}

// NewEmailServiceWithSender создает сервис с произвольным отправителем и запускает workers воркеров.
// При disabled письма не отправляются, только пишутся в лог.
func NewEmailServiceWithSender(sender Sender, from string, workers int, disabled bool) (*EmailService, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	es := &EmailService{
		sender:    sender,
		from:      from,
		disabled:  disabled,
		templates: tmpl,
		emailChan: make(chan *gomail.Message, workers*4),
	}
	if disabled {
		slog.Warn("Email notifications disabled")
	}

	for range max(workers, 1) {
		es.eg.Go(func() error {
			return es.worker(es.emailChan)
		})
	}
	return es, nil
}

func loadTemplates() (*template.Template, error) {
	minifier := minify.New()
	minifier.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		TemplateDelims:   html.GoTemplateDelims,
	})

	root := template.New("")
	files, err := fs.ReadDir(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		data, err := defaultTemplates.ReadFile(path.Join("templates", file.Name()))
		if err != nil {
			return nil, err
		}
		if minified, err := minifier.Bytes("text/html", data); err != nil {
			slog.Warn("Error minify embed template", "name", file.Name(), "err", err)
		} else {
			data = minified
		}

		name := strings.TrimSuffix(file.Name(), path.Ext(file.Name()))
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
	}
	return root, nil
}

// Stop закрывает очередь и ждет отправки уже поставленных писем
func (es *EmailService) Stop() {
	es.mu.Lock()
	if es.stopped {
		es.mu.Unlock()
		return
	}
	es.stopped = true
	close(es.emailChan)
	es.mu.Unlock()

	if err := es.eg.Wait(); err != nil {
		slog.Error("Email worker", "err", err)
	}
	slog.Info("Email workers successfully stopped")
}

func (es *EmailService) send(e mail) error {
	if len(e.To) == 0 {
		return nil
	}

	es.mu.RLock()
	defer es.mu.RUnlock()
	if es.stopped {
		return ErrServiceStopped
	}
	if es.disabled {
		slog.Info("Email skipped", "to", e.To, "subject", e.Subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", es.from)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.TextContent)
	m.AddAlternative("text/html", e.Content)

	es.emailChan <- m
	return nil
}

func (es *EmailService) worker(emailChan <-chan *gomail.Message) error {
	for m := range emailChan {
		if err := es.sender.DialAndSend(m); err != nil {
			slog.Error("Email send", "to", m.GetHeader("To"), "err", err)
		}
	}
	return nil
}

func (es *EmailService) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := es.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormCopy отправляет респонденту копию его ответов.
//
// Параметры:
//   - to: адрес получателя
//   - title: название шаблона
//   - answers: пары вопрос/ответ в порядке вопросов
//   - submittedAt: время отправки формы
//   - link: ссылка на форму, может быть пустой
func (es *EmailService) FormCopy(to, title string, answers []AnswerLine, submittedAt time.Time, link string) error {
	content, err := es.render("form_copy", struct {
		Title       string
		Answers     []AnswerLine
		SubmittedAt time.Time
		Link        string
	}{title, answers, submittedAt, link})
	if err != nil {
		return err
	}

	text, err := FormCopyText(title, answers, link)
	if err != nil {
		return err
	}

	return es.send(mail{
		To:          []string{to},
		Subject:     "Your answers: " + title,
		Content:     content,
		TextContent: text,
	})
}

// FormCopyText строит текстовую часть письма с ответами в Markdown
func FormCopyText(title string, answers []AnswerLine, link string) (string, error) {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf).H1(title)
	items := make([]string, 0, len(answers))
	for _, a := range answers {
		items = append(items, fmt.Sprintf("%s %s", md.Bold(a.Question+":"), a.Answer))
	}
	doc.BulletList(items...)
	if link != "" {
		doc.PlainText(md.Link("Open the form", link))
	}
	if err := doc.Build(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (es *EmailService) UserBlockedUntil(email string, until time.Time) error {
	content, err := es.render("blocked_until", struct {
		Until time.Time
	}{until})
	if err != nil {
		return err
	}

	return es.send(mail{
		To:          []string{email},
		Subject:     "Suspicious sign-in activity",
		Content:     content,
		TextContent: strings.TrimSpace(htmlStripPolicy.Sanitize(content)),
	})
}

// SupportTicket уведомляет администраторов из ticket.Admins о новой заявке
func (es *EmailService) SupportTicket(ticket dto.SupportTicket) error {
	content, err := es.render("support_ticket", ticket)
	if err != nil {
		return err
	}

	return es.send(mail{
		To:          ticket.Admins,
		Subject:     fmt.Sprintf("[%s] Support ticket from %s", ticket.Priority, ticket.ReportedBy),
		Content:     content,
		TextContent: strings.TrimSpace(htmlStripPolicy.Sanitize(content)),
	})
}
