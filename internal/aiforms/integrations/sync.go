package integrations

import (
	"context"
	"log/slog"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultSyncDelay - пауза между записями, чтобы не упереться в лимит запросов таблицы
const DefaultSyncDelay = 250 * time.Millisecond

var syncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aiforms_sync_records_total",
	Help: "Templates exported to the tabular store by result",
}, []string{"result"})

// TemplateSource отдает шаблоны для выгрузки. Пустой userID означает все шаблоны.
type TemplateSource interface {
	SyncTemplates(ctx context.Context, userID string) ([]dto.TemplateLight, error)
}

// Syncer последовательно выгружает шаблоны во внешнюю таблицу
type Syncer struct {
	source TemplateSource
	sink   RecordCreator
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

type SyncerOption func(*Syncer)

func WithDelay(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.delay = d }
}

// WithSleep подменяет ожидание между записями
func WithSleep(f func(ctx context.Context, d time.Duration) error) SyncerOption {
	return func(s *Syncer) { s.sleep = f }
}

func NewSyncer(source TemplateSource, sink RecordCreator, opts ...SyncerOption) *Syncer {
	s := &Syncer{source: source, sink: sink, delay: DefaultSyncDelay, sleep: sleepCtx}
	for _, o := range opts {
		o(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordFromTemplate сопоставляет шаблон строке таблицы
func RecordFromTemplate(t dto.TemplateLight) TabularRecord {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TabularRecord{
		Name:        t.Title,
		Description: t.Description,
		Category:    t.Topic,
		Tags:        tags,
	}
}

// Sync выгружает шаблоны пользователя (или все при пустом userID).
//
// Записи отправляются по одной с паузой между ними (после последней паузы нет).
// Ошибка записи не прерывает выгрузку, а попадает в Errors. Если не удалось получить
// сам список шаблонов, результат содержит одну ошибку с пустым templateId.
// Отмена ctx прерывает выгрузку, необработанные шаблоны в результат не попадают.
func (s *Syncer) Sync(ctx context.Context, userID string) dto.SyncResult {
	templates, err := s.source.SyncTemplates(ctx, userID)
	if err != nil {
		slog.Error("Sync: list templates", "user", userID, "err", err)
		return dto.SyncResult{
			Success: false,
			Errors:  []dto.SyncError{{TemplateID: "", Error: errorMessage(err)}},
		}
	}

	if s.sink == nil {
		return dto.SyncResult{
			Success: false,
			Errors:  []dto.SyncError{{TemplateID: "", Error: ErrNotConfigured.Error()}},
		}
	}

	slog.Info("Sync templates", "user", userID, "count", len(templates))
	result := dto.SyncResult{Errors: []dto.SyncError{}}
	for i, t := range templates {
		if _, err := s.sink.CreateRecord(ctx, RecordFromTemplate(t)); err != nil {
			slog.Warn("Sync template", "id", t.ID, "title", t.Title, "err", err)
			result.Errors = append(result.Errors, dto.SyncError{TemplateID: t.ID, Error: errorMessage(err)})
			syncRecords.WithLabelValues("error").Inc()
		} else {
			result.SuccessCount++
			syncRecords.WithLabelValues("success").Inc()
		}

		if i < len(templates)-1 {
			if err := s.sleep(ctx, s.delay); err != nil {
				result.Errors = append(result.Errors, dto.SyncError{TemplateID: "", Error: errorMessage(err)})
				break
			}
		}
	}
	result.Success = len(result.Errors) == 0
	return result
}
