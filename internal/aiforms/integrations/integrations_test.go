package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/google/go-cmp/cmp"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	templates []dto.TemplateLight
	err       error
}

func (f fakeSource) SyncTemplates(ctx context.Context, userID string) ([]dto.TemplateLight, error) {
	return f.templates, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	records []TabularRecord
	failOn  string
}

func (f *fakeSink) CreateRecord(ctx context.Context, rec TabularRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Name == f.failOn {
		return "", &RemoteError{StatusCode: 422, Body: "invalid"}
	}
	f.records = append(f.records, rec)
	return "rec", nil
}

func countingSleep(n *int) SyncerOption {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*n++
		return ctx.Err()
	})
}

func TestSync(t *testing.T) {
	src := fakeSource{templates: []dto.TemplateLight{
		{ID: "1", Title: "A", Description: "first", Topic: "Quiz", Tags: []string{"x"}},
		{ID: "2", Title: "B"},
		{ID: "3", Title: "C"},
	}}

	t.Run("все записи", func(t *testing.T) {
		sink := &fakeSink{}
		sleeps := 0
		res := NewSyncer(src, sink, countingSleep(&sleeps)).Sync(context.Background(), "u1")
		assert.True(t, res.Success)
		assert.Equal(t, 3, res.SuccessCount)
		assert.Empty(t, res.Errors)
		assert.Equal(t, 2, sleeps)
		if diff := cmp.Diff(TabularRecord{Name: "A", Description: "first", Category: "Quiz", Tags: []string{"x"}}, sink.records[0]); diff != "" {
			t.Error(diff)
		}
		assert.Equal(t, []string{}, sink.records[1].Tags)
	})

	t.Run("ошибка записи не прерывает выгрузку", func(t *testing.T) {
		sink := &fakeSink{failOn: "B"}
		sleeps := 0
		res := NewSyncer(src, sink, countingSleep(&sleeps)).Sync(context.Background(), "u1")
		assert.False(t, res.Success)
		assert.Equal(t, 2, res.SuccessCount)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "2", res.Errors[0].TemplateID)
		assert.Equal(t, "remote status 422: invalid", res.Errors[0].Error)
		assert.Len(t, sink.records, 2)
		assert.Equal(t, 2, sleeps)
	})

	t.Run("не удалось получить шаблоны", func(t *testing.T) {
		res := NewSyncer(fakeSource{err: errors.New("db down")}, &fakeSink{}).Sync(context.Background(), "")
		assert.False(t, res.Success)
		assert.Zero(t, res.SuccessCount)
		assert.Equal(t, []dto.SyncError{{TemplateID: "", Error: "db down"}}, res.Errors)
	})

	t.Run("один шаблон без паузы", func(t *testing.T) {
		sleeps := 0
		res := NewSyncer(fakeSource{templates: src.templates[:1]}, &fakeSink{}, countingSleep(&sleeps)).Sync(context.Background(), "")
		assert.True(t, res.Success)
		assert.Zero(t, sleeps)
	})

	t.Run("отмена контекста", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sink := &fakeSink{}
		res := NewSyncer(src, sink, WithDelay(time.Hour)).Sync(ctx, "")
		assert.False(t, res.Success)
		assert.Len(t, sink.records, 1)
	})

	t.Run("таблица не настроена", func(t *testing.T) {
		var tc *TabularClient
		res := NewSyncer(src, nil).Sync(context.Background(), "")
		assert.False(t, res.Success)
		_, err := tc.CreateRecord(context.Background(), TabularRecord{})
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestTabularClient(t *testing.T) {
	var got struct {
		Fields TabularRecord `json:"fields"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/base1/Templates", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"rec123"}`))
	}))
	defer srv.Close()

	assert.Nil(t, NewTabularClient("", "", "", ""))
	c := NewTabularClient(srv.URL+"/", "secret", "base1", "")
	id, err := c.CreateRecord(context.Background(), TabularRecord{Name: "A", Category: "Quiz"})
	require.NoError(t, err)
	assert.Equal(t, "rec123", id)
	assert.Equal(t, "A", got.Fields.Name)
	assert.Equal(t, []string{}, got.Fields.Tags)
}

func TestCRMClient(t *testing.T) {
	var lead crmLead
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != crmLeadPath {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`[{"message":"bad"}]`))
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lead))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"00Q1","success":true}`))
	}))
	defer srv.Close()

	var nilClient *CRMClient
	_, err := nilClient.CreateContact(context.Background(), "u", dto.CRMContact{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	c := NewCRMClient(srv.URL, "tok")
	id, err := c.CreateContact(context.Background(), "u1", dto.CRMContact{Name: " Ann ", Email: "ann@example.com", JobTitle: "CTO"})
	require.NoError(t, err)
	assert.Equal(t, "00Q1", id)
	assert.Equal(t, "Ann", lead.LastName)
	assert.Equal(t, "Individual", lead.Company)
	assert.Equal(t, "CTO", lead.Title)

	bad := NewCRMClient(srv.URL+"/wrong", "tok")
	_, err = bad.CreateContact(context.Background(), "u1", dto.CRMContact{Name: "x"})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
}

func TestSyncTask(t *testing.T) {
	task, err := NewSyncTask("u42")
	require.NoError(t, err)
	assert.Equal(t, TypeSyncTemplates, task.Type())

	sink := &fakeSink{}
	s := NewSyncer(fakeSource{templates: []dto.TemplateLight{{ID: "1", Title: "A"}}}, sink)
	require.NoError(t, HandleSyncTask(s)(context.Background(), task))
	assert.Len(t, sink.records, 1)

	err = HandleSyncTask(s)(context.Background(), asynq.NewTask(TypeSyncTemplates, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
