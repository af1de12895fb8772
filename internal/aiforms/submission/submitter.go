package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
)

// RedirectDelay - пауза между успешной отправкой и переходом на страницу подтверждения
const RedirectDelay = 2 * time.Second

var ErrAlreadySubmitting = errors.New("form is already being submitted")

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Persister сохраняет заполненную форму
type Persister interface {
	SubmitForm(ctx context.Context, payload dto.FormPayload) (*dto.Form, error)
}

// SuccessPath адрес страницы подтверждения для шаблона
func SuccessPath(templateID string) string {
	return fmt.Sprintf("/forms/%s/success", templateID)
}

// Submitter управляет отправкой одной формы: idle -> submitting -> succeeded | failed.
// После ошибки форма остается редактируемой и может быть отправлена снова, автоматических повторов нет.
type Submitter struct {
	persister Persister
	navigate  func(path string)
	delay     time.Duration

	mu       sync.Mutex
	state    State
	lastErr  error
	redirect *time.Timer
	stopCtx  func() bool
}

type Option func(*Submitter)

// WithRedirectDelay меняет паузу перед переходом (используется в тестах)
func WithRedirectDelay(d time.Duration) Option {
	return func(s *Submitter) { s.delay = d }
}

func NewSubmitter(p Persister, navigate func(path string), opts ...Option) *Submitter {
	s := &Submitter{persister: p, navigate: navigate, delay: RedirectDelay}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err последняя ошибка сохранения для показа пользователю
func (s *Submitter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Editable - форму можно менять и отправлять
func (s *Submitter) Editable() bool {
	st := s.State()
	return st == StateIdle || st == StateFailed
}

// Submit проверяет форму и отправляет ее. Ошибки валидации (FieldErrors) возвращаются без обращения к Persister.
// После успеха через RedirectDelay вызывается переход на SuccessPath, отмена ctx отменяет переход.
func (s *Submitter) Submit(ctx context.Context, tmpl *dto.Template, req Request) (*dto.Form, error) {
	payload, err := BuildPayload(tmpl, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateSubmitting || s.state == StateSucceeded {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitting
	}
	s.state = StateSubmitting
	s.lastErr = nil
	s.mu.Unlock()

	form, err := s.persister.SubmitForm(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return nil, err
	}
	s.state = StateSucceeded

	path := SuccessPath(payload.TemplateID)
	s.redirect = time.AfterFunc(s.delay, func() {
		if ctx.Err() == nil && s.navigate != nil {
			s.navigate(path)
		}
	})
	timer := s.redirect
	s.stopCtx = context.AfterFunc(ctx, func() { timer.Stop() })
	return form, nil
}

// Close отменяет запланированный переход. Вызывается при уходе со страницы.
func (s *Submitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redirect != nil {
		s.redirect.Stop()
	}
	if s.stopCtx != nil {
		s.stopCtx()
	}
}
