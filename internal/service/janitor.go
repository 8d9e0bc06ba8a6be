// janitor.go — фоновая очистка истёкших записей персистентного кэша проектов.
// Запускается только для LC_CACHE_BACKEND=postgres: in-memory LRU вычищает записи сам.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	janitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lc_cache_janitor_runs_total",
		Help: "Общее количество запусков очистки кэша проектов",
	})
	janitorDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lc_cache_janitor_deleted_total",
		Help: "Общее количество истёкших записей, удалённых из кэша проектов",
	})
)

// ExpiredCacheCleaner — хранилище, умеющее удалять истёкшие записи (repository.CacheRepository).
type ExpiredCacheCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheJanitor — периодическая очистка истёкших записей кэша.
type CacheJanitor struct {
	cleaner  ExpiredCacheCleaner
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCacheJanitor создаёт сервис очистки кэша.
func NewCacheJanitor(cleaner ExpiredCacheCleaner, interval time.Duration, logger *slog.Logger) *CacheJanitor {
	return &CacheJanitor{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With(slog.String("component", "cache_janitor")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (j *CacheJanitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(runCtx)

	j.logger.Info("Очистка кэша запущена", slog.String("interval", j.interval.String()))
}

// Stop останавливает фоновую очистку и дожидается завершения горутины.
func (j *CacheJanitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	j.logger.Info("Очистка кэша остановлена")
}

func (j *CacheJanitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки. Возвращает количество удалённых записей.
func (j *CacheJanitor) RunOnce(ctx context.Context) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	janitorRunsTotal.Inc()
	deleted, err := j.cleaner.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("Ошибка очистки кэша проектов", slog.String("error", err.Error()))
		return 0
	}

	janitorDeletedTotal.Add(float64(deleted))
	if deleted > 0 {
		j.logger.Debug("Истёкшие записи кэша удалены", slog.Int64("deleted", deleted))
	}
	return deleted
}
