// Периодические фоновые задачи сервера: синхронизация шаблонов, сброс истекших блокировок входа.
package cronmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type JobFunc func(ctx context.Context) error

type Job struct {
	Func     JobFunc
	Schedule string
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	registry JobRegistry
}

// NewCronManager создает менеджер с заданным набором задач. Задачи попадают в расписание после LoadJobs.
func NewCronManager(registry JobRegistry) *CronManager {
	ctx, cancel := context.WithCancel(context.Background())
	if registry == nil {
		registry = JobRegistry{}
	}
	return &CronManager{
		dispatcher: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]cron.EntryID),
		registry:   registry,
	}
}

// EverySchedule возвращает расписание "каждые d". Для d <= 0 возвращает пустую строку, такая задача не планируется.
func EverySchedule(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return "@every " + d.String()
}

// Register добавляет задачу в реестр и, если менеджер уже загружен, сразу в расписание
func (cm *CronManager) Register(name string, job Job) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.registry[name] = job
	if _, loaded := cm.jobs[name]; loaded {
		cm.dispatcher.Remove(cm.jobs[name])
		delete(cm.jobs, name)
	}
	if job.Schedule == "" {
		return nil
	}
	return cm.addJob(name)
}

// LoadJobs перечитывает реестр в расписание. Задачи с пустым расписанием пропускаются.
//
// Возвращает:
//   - error: первая ошибка разбора расписания; остальные задачи при этом все равно добавляются
func (cm *CronManager) LoadJobs() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	var firstErr error
	for name, job := range cm.registry {
		if job.Schedule == "" {
			continue
		}
		if err := cm.addJob(name); err != nil {
			slog.Error("Error adding job", "name", name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (cm *CronManager) addJob(name string) error {
	job, exists := cm.registry[name]
	if !exists {
		return fmt.Errorf("no job function registered for name: %s", name)
	}

	id, err := cm.dispatcher.AddFunc(job.Schedule, func() {
		start := time.Now()
		if err := job.Func(cm.ctx); err != nil {
			slog.Error("Cron job failed", "name", name, "err", err)
			return
		}
		slog.Debug("Cron job done", "name", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to add job '%s': %w", name, err)
	}
	cm.jobs[name] = id
	return nil
}

func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

// Scheduled возвращает true, если задача есть в расписании
func (cm *CronManager) Scheduled(name string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.jobs[name]
	return ok
}

// Run немедленно выполняет задачу из реестра вне расписания
func (cm *CronManager) Run(ctx context.Context, name string) error {
	cm.mu.Lock()
	job, ok := cm.registry[name]
	cm.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job function registered for name: %s", name)
	}
	return job.Func(ctx)
}

func (cm *CronManager) Start() {
	cm.dispatcher.Start()
}

// Stop отменяет контекст задач и ждет завершения выполняющихся
func (cm *CronManager) Stop() {
	cm.cancel()
	<-cm.dispatcher.Stop().Done()
}
