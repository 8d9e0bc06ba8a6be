package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockCleaner — мок ExpiredCacheCleaner.
type mockCleaner struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (m *mockCleaner) DeleteExpired(context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

func TestCacheJanitor_RunOnce(t *testing.T) {
	logger, buf := captureLogger()

	j := NewCacheJanitor(&mockCleaner{deleted: 3}, time.Hour, logger)
	if got := j.RunOnce(context.Background()); got != 3 {
		t.Errorf("RunOnce = %d, ожидалось 3", got)
	}

	j = NewCacheJanitor(&mockCleaner{err: errors.New("db down")}, time.Hour, logger)
	if got := j.RunOnce(context.Background()); got != 0 {
		t.Errorf("RunOnce при ошибке = %d, ожидалось 0", got)
	}
	if buf.Len() == 0 {
		t.Error("ожидался лог ошибки")
	}
}

func TestCacheJanitor_StartStop(t *testing.T) {
	cleaner := &mockCleaner{}
	logger, _ := captureLogger()
	j := NewCacheJanitor(cleaner, 10*time.Millisecond, logger)

	j.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for cleaner.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()

	if cleaner.calls.Load() < 2 {
		t.Errorf("вызовов DeleteExpired = %d, ожидалось >= 2", cleaner.calls.Load())
	}

	after := cleaner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if cleaner.calls.Load() != after {
		t.Error("после Stop очистка не должна выполняться")
	}
}
