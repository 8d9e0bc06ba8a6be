// Пакет server — HTTP-сервер TK Labels Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/tklabels-module/internal/api/errors"
	"github.com/bigkaa/goartstore/tklabels-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/tklabels-module/internal/config"
)

// Server — HTTP-сервер TK Labels Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Routes — обработчики и middleware маршрутов.
type Routes struct {
	API    *handlers.APIHandler
	Health *handlers.HealthHandler
	// AdminAuth — цепочка JWT + RBAC для управления кэшем.
	// nil — административные endpoints не регистрируются.
	AdminAuth []func(http.Handler) http.Handler
}

// NewRouter создаёт chi-роутер со всеми маршрутами.
// middlewares применяются ко всем маршрутам в порядке переданного среза.
func NewRouter(routes Routes, middlewares ...func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Метод не поддерживается")
	})

	router.Get("/health/live", routes.Health.HealthLive)
	router.Get("/health/ready", routes.Health.HealthReady)
	router.Get("/metrics", routes.Health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/nodes/{nodeID}/project", routes.API.GetNodeProject)
		r.Get("/entities/{entityType}/{entityID}/project", routes.API.GetEntityProject)
		r.Get("/projects/{projectID}", routes.API.GetProject)

		if routes.AdminAuth != nil {
			r.Group(func(r chi.Router) {
				r.Use(routes.AdminAuth...)
				r.Delete("/cache/projects", routes.API.InvalidateAllProjects)
				r.Delete("/cache/projects/{projectID}", routes.API.InvalidateProject)
			})
		}
	})

	return router
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, routes Routes, middlewares ...func(http.Handler) http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(routes, middlewares...),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
