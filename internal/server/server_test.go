package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/tklabels-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/tklabels-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
	"github.com/bigkaa/goartstore/tklabels-module/internal/hubclient"
	"github.com/bigkaa/goartstore/tklabels-module/internal/repository"
	"github.com/bigkaa/goartstore/tklabels-module/internal/service"
)

type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "" }

// fakeEntities — загрузчик сущностей без базы данных.
type fakeEntities map[string]*model.Node

func (f fakeEntities) GetByID(_ context.Context, entityType, entityID string) (*model.Node, error) {
	if n, ok := f[entityType+"/"+entityID]; ok {
		return n, nil
	}
	return nil, repository.ErrNotFound
}

// denyAll — административный middleware, отклоняющий все запросы.
func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRoutes собирает реальные сервисы поверх mock Hub.
func newTestRoutes(t *testing.T, hubURL string) Routes {
	t.Helper()
	logger := testLogger()

	client, err := hubclient.New("", time.Second, logger)
	if err != nil {
		t.Fatalf("Ошибка создания hubclient: %v", err)
	}
	projects := service.NewProjectDataService(client, service.NewCacheService(100, time.Hour), time.Hour, logger)
	settings := service.NewSettingsService(model.Settings{
		APIURL: hubURL, APIKey: "k", FieldIdentifier: "field_project_id",
	}, nil, logger)

	entities := fakeEntities{
		"node/42": {ID: "42", Type: "node", Fields: map[string]string{"field_project_id": "12345"}},
	}

	return Routes{
		API:    handlers.NewAPIHandler(projects, entities, settings, logger),
		Health: handlers.NewHealthHandler(okChecker{}, service.NewHubReadinessChecker(settings), nil),
	}
}

// TestRouter_EndToEnd — маршрут узла проходит весь pipeline до mock Hub.
func TestRouter_EndToEnd(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/12345/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unique_id":"12345","title":"Test Project","tk_labels":[]}`))
	}))
	defer hub.Close()

	router := NewRouter(newTestRoutes(t, hub.URL), middleware.RequestID(), middleware.MetricsMiddleware())

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/api/v1/nodes/42/project", http.StatusOK},
		{http.MethodGet, "/api/v1/projects/12345", http.StatusOK},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/unknown", http.StatusNotFound},
		{http.MethodPost, "/api/v1/projects/12345", http.StatusMethodNotAllowed},
		// Без JWT административные маршруты не регистрируются
		{http.MethodDelete, "/api/v1/cache/projects", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s %s: статус = %d, ожидался %d", tt.method, tt.path, rec.Code, tt.wantCode)
		}
		if rec.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s %s: нет X-Request-ID", tt.method, tt.path)
		}
	}
}

// TestRouter_AdminAuth — административные маршруты закрыты middleware.
func TestRouter_AdminAuth(t *testing.T) {
	routes := newTestRoutes(t, "http://127.0.0.1:1")
	routes.AdminAuth = []func(http.Handler) http.Handler{denyAll}
	router := NewRouter(routes)

	for _, path := range []string{"/api/v1/cache/projects", "/api/v1/cache/projects/12345"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("DELETE %s: статус = %d, ожидался 401", path, rec.Code)
		}
	}

	// Публичные маршруты не требуют JWT
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nodes/404/project", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET узла: статус = %d, ожидался 200", rec.Code)
	}
}
