// Внешние интеграции сервиса форм.
//
// Основные возможности:
//   - Создание лида в CRM по данным пользователя.
//   - Выгрузка шаблонов во внешнюю таблицу (sync), синхронно или через очередь задач asynq.
//
// Все исходящие запросы идут через retryablehttp: временные ошибки и 5xx повторяются.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrNotConfigured = errors.New("integration is not configured")

// RemoteError - ответ внешнего сервиса с неуспешным статусом
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote status %d: %s", e.StatusCode, e.Body)
}

func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.RetryWaitMin = 500 * time.Millisecond
	cl.RetryWaitMax = 5 * time.Second
	cl.HTTPClient.Timeout = timeout
	cl.Logger = slog.Default()
	return cl
}

// doJSON отправляет body как JSON с bearer токеном и декодирует ответ в out (если out не nil)
func doJSON(ctx context.Context, cl *retryablehttp.Client, method, url, token string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, raw)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := cl.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage возвращает текст ошибки для SyncError и ответов API
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Error()
	}
	return err.Error()
}
