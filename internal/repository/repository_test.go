package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/tklabels-module/internal/config"
	"github.com/bigkaa/goartstore/tklabels-module/internal/database"
	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
	"github.com/bigkaa/goartstore/tklabels-module/internal/service"
)

// CacheRepository должен быть взаимозаменяем с in-memory кэшем.
var _ service.ProjectCache = (*CacheRepository)(nil)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("tklabels_test"),
		postgres.WithUsername("tklabels"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("LC_DB_HOST", host)
	t.Setenv("LC_DB_PORT", port.Port())
	t.Setenv("LC_DB_NAME", "tklabels_test")
	t.Setenv("LC_DB_USER", "tklabels")
	t.Setenv("LC_DB_PASSWORD", "test-password")
	t.Setenv("LC_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func strPtr(s string) *string { return &s }

// --- EntityRepository ---

func TestEntityRepository_GetByID(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewEntityRepository(pool)

	_, err := pool.Exec(ctx, `
		INSERT INTO content_entities (entity_type, entity_id, bundle) VALUES ('node', '42', 'article');
		INSERT INTO content_entity_fields (entity_type, entity_id, field_name, delta, value) VALUES
			('node', '42', 'field_project_id', 0, '12345'),
			('node', '42', 'field_project_id', 1, 'ignored'),
			('node', '42', 'field_empty', 0, NULL);`)
	if err != nil {
		t.Fatalf("Ошибка подготовки данных: %v", err)
	}

	node, err := repo.GetByID(ctx, "node", "42")
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if node.Bundle() != "article" {
		t.Errorf("Bundle = %q, ожидался article", node.Bundle())
	}
	if v, ok := node.FieldValue("field_project_id"); !ok || v != "12345" {
		t.Errorf("field_project_id = %q (ok=%v), ожидалось 12345", v, ok)
	}
	if v, ok := node.FieldValue("field_empty"); !ok || v != "" {
		t.Errorf("field_empty = %q (ok=%v), ожидалась пустая строка", v, ok)
	}

	if _, err := repo.GetByID(ctx, "node", "404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(404) ошибка = %v, ожидалась ErrNotFound", err)
	}
}

// --- SettingsRepository ---

func TestSettingsRepository_Get(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSettingsRepository(pool)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ожидалась пустая таблица, получено %v", got)
	}

	_, err = pool.Exec(ctx, `INSERT INTO lc_settings (name, value) VALUES ('api_key', 'db-key'), ('field_identifier', 'field_lc')`)
	if err != nil {
		t.Fatalf("Ошибка подготовки данных: %v", err)
	}

	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got["api_key"] != "db-key" || got["field_identifier"] != "field_lc" {
		t.Errorf("настройки = %v", got)
	}
}

// --- CacheRepository ---

func TestCacheRepository_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCacheRepository(pool)

	record := &model.ProjectRecord{
		UniqueID: strPtr("12345"),
		Title:    strPtr("Test Project"),
		TKLabels: []model.Label{{"name": "TK Attribution", "label_text": "text"}},
	}

	if _, ok, err := repo.Get(ctx, "project:12345"); err != nil || ok {
		t.Fatalf("ожидался miss (ok=%v, err=%v)", ok, err)
	}

	if err := repo.Set(ctx, "project:12345", record, time.Hour, []string{service.ProjectCacheTag}); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}
	got, ok, err := repo.Get(ctx, "project:12345")
	if err != nil || !ok {
		t.Fatalf("ожидался hit (ok=%v, err=%v)", ok, err)
	}
	if *got.Title != "Test Project" || got.DateAdded != nil || got.TKLabels[0]["name"] != "TK Attribution" {
		t.Errorf("запись = %+v", got)
	}

	// Перезапись — последняя запись побеждает
	record.Title = strPtr("Updated")
	if err := repo.Set(ctx, "project:12345", record, time.Hour, []string{service.ProjectCacheTag}); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}
	got, _, _ = repo.Get(ctx, "project:12345")
	if *got.Title != "Updated" {
		t.Errorf("Title = %q, ожидался Updated", *got.Title)
	}

	if err := repo.Invalidate(ctx, "project:12345"); err != nil {
		t.Fatalf("Invalidate() ошибка: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "project:12345"); ok {
		t.Error("ожидался miss после Invalidate")
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("удалено %d записей, ожидалась 1", n)
	}
}

func TestCacheRepository_TTLAndTags(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCacheRepository(pool)

	now := time.Now()
	repo.now = func() time.Time { return now }

	rec := &model.ProjectRecord{Title: strPtr("x"), TKLabels: []model.Label{}}
	_ = repo.Set(ctx, "project:1", rec, time.Minute, []string{service.ProjectCacheTag})
	_ = repo.Set(ctx, "project:2", rec, time.Hour, []string{service.ProjectCacheTag})
	_ = repo.Set(ctx, "other:3", rec, time.Hour, []string{"other"})

	now = now.Add(2 * time.Minute)
	if _, ok, _ := repo.Get(ctx, "project:1"); ok {
		t.Error("project:1 должна истечь")
	}
	if _, ok, _ := repo.Get(ctx, "project:2"); !ok {
		t.Error("project:2 ещё действительна")
	}

	if err := repo.InvalidateTags(ctx, service.ProjectCacheTag); err != nil {
		t.Fatalf("InvalidateTags() ошибка: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "project:2"); ok {
		t.Error("project:2 должна быть инвалидирована по тегу")
	}
	if _, ok, _ := repo.Get(ctx, "other:3"); !ok {
		t.Error("запись с другим тегом не должна инвалидироваться")
	}

	if err := repo.Delete(ctx, "other:3"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "other:3"); ok {
		t.Error("ожидался miss после Delete")
	}
}
