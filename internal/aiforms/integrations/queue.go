package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const TypeSyncTemplates = "templates:sync"

type SyncPayload struct {
	UserID string `json:"user_id"`
}

func NewSyncTask(userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncTemplates, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// SyncQueue ставит выгрузку в очередь. Для одного пользователя в очереди не больше одной задачи.
type SyncQueue struct {
	client *asynq.Client
}

func NewSyncQueue(redisAddr, password string) *SyncQueue {
	return &SyncQueue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: password})}
}

// Enqueue возвращает true, если задача поставлена, и false, если такая уже ждет выполнения
func (q *SyncQueue) Enqueue(ctx context.Context, userID string) (bool, error) {
	task, err := NewSyncTask(userID)
	if err != nil {
		return false, err
	}
	_, err = q.client.EnqueueContext(ctx, task, asynq.TaskID("sync-"+userID), asynq.Retention(time.Minute))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (q *SyncQueue) Close() error {
	return q.client.Close()
}

// HandleSyncTask возвращает обработчик задач выгрузки для asynq.ServeMux
func HandleSyncTask(s *Syncer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode sync payload: %v: %w", err, asynq.SkipRetry)
		}

		res := s.Sync(ctx, payload.UserID)
		slog.Info("Sync task done", "user", payload.UserID, "success", res.Success, "count", res.SuccessCount, "errors", len(res.Errors))
		return nil
	}
}

// SyncWorker обрабатывает задачи выгрузки из Redis
type SyncWorker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewSyncWorker(redisAddr, password string, s *Syncer) *SyncWorker {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr, Password: password}, asynq.Config{
		Concurrency: 1,
		Logger:      asynqLogger{},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSyncTemplates, HandleSyncTask(s))
	return &SyncWorker{srv: srv, mux: mux}
}

func (w *SyncWorker) Start() error {
	return w.srv.Start(w.mux)
}

func (w *SyncWorker) Shutdown() {
	w.srv.Shutdown()
}

type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Info(args ...any)  { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Fatal(args ...any) {
	slog.Error(fmt.Sprint(args...), "component", "asynq", "fatal", true)
}
