package cronmanager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEverySchedule(t *testing.T) {
	assert.Equal(t, "", EverySchedule(0))
	assert.Equal(t, "@every 15m0s", EverySchedule(15*time.Minute))
}

func TestLoadJobs(t *testing.T) {
	noop := func(context.Context) error { return nil }
	cm := NewCronManager(JobRegistry{
		"sync":     {Func: noop, Schedule: "@every 1h"},
		"disabled": {Func: noop},
		"broken":   {Func: noop, Schedule: "not a schedule"},
	})

	assert.Error(t, cm.LoadJobs())
	assert.True(t, cm.Scheduled("sync"))
	assert.False(t, cm.Scheduled("disabled"))
	assert.False(t, cm.Scheduled("broken"))

	cm.RemoveJob("sync")
	assert.False(t, cm.Scheduled("sync"))

	require.NoError(t, cm.Register("sync", Job{Func: noop, Schedule: "@every 2h"}))
	assert.True(t, cm.Scheduled("sync"))
}

func TestRunAndSchedule(t *testing.T) {
	var calls atomic.Int32
	cm := NewCronManager(nil)
	require.NoError(t, cm.Register("tick", Job{Schedule: "@every 1s", Func: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}}))
	require.NoError(t, cm.Register("fail", Job{Func: func(context.Context) error { return errors.New("boom") }}))

	assert.EqualError(t, cm.Run(context.Background(), "fail"), "boom")
	assert.Error(t, cm.Run(context.Background(), "missing"))

	cm.Start()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cm.Stop()
}
