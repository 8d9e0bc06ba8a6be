// main.go — точка входа TK Labels Module.
// Инициализация: config → logger → миграции → PostgreSQL → Hub client →
// кэш → сервисы → topologymetrics → JWT → HTTP-сервер.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/tklabels-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/tklabels-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/tklabels-module/internal/config"
	"github.com/bigkaa/goartstore/tklabels-module/internal/database"
	"github.com/bigkaa/goartstore/tklabels-module/internal/hubclient"
	"github.com/bigkaa/goartstore/tklabels-module/internal/repository"
	"github.com/bigkaa/goartstore/tklabels-module/internal/server"
	"github.com/bigkaa/goartstore/tklabels-module/internal/service"
)

// keycloakCheckTimeout — таймаут проверки JWKS в readiness probe.
const keycloakCheckTimeout = 3 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("TK Labels Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_backend", cfg.CacheBackend),
	)
	if cfg.APIKey == "" {
		logger.Warn("LC_API_KEY не задан, ожидается значение в таблице lc_settings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Миграции БД
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций", slog.String("error", err.Error()))
		log.Fatalf("Ошибка миграций: %v", err)
	}

	// 4. Подключение к PostgreSQL
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		log.Fatalf("Ошибка подключения к PostgreSQL: %v", err)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент Local Contexts Hub
	hubClient, err := hubclient.New(cfg.HubCACertPath, cfg.HubTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента Hub", slog.String("error", err.Error()))
		log.Fatalf("Ошибка создания клиента Hub: %v", err)
	}

	// 6. Репозитории
	entityRepo := repository.NewEntityRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// 7. Настройки Hub: lc_settings поверх переменных окружения
	settingsSvc := service.NewSettingsService(cfg.HubSettings(), settingsRepo, logger)

	// 8. Кэш проектов
	var cache service.ProjectCache
	switch cfg.CacheBackend {
	case config.CacheBackendPostgres:
		cacheRepo := repository.NewCacheRepository(pool)
		cache = cacheRepo

		janitor := service.NewCacheJanitor(cacheRepo, cfg.CacheCleanupInterval, logger)
		janitor.Start(ctx)
		defer janitor.Stop()
	default:
		cache = service.NewCacheService(cfg.CacheMaxSize, cfg.CacheTTL)
	}

	// 9. Сервис данных проектов
	projectSvc := service.NewProjectDataService(hubClient, cache, cfg.CacheTTL, logger)

	// 10. topologymetrics — мониторинг PostgreSQL и Hub.
	// Ошибка не фатальна: сервис работает без метрик зависимостей.
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "tklabels-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		HubAPIURL:     cfg.APIURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. JWT для административных endpoints кэша
	var (
		adminAuth       []func(http.Handler) http.Handler
		keycloakChecker handlers.ReadinessChecker
	)
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTCACertPath, cfg.JWTIssuer, cfg.RoleAdminGroups, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT", slog.String("error", err.Error()))
			log.Fatalf("Ошибка инициализации JWT: %v", err)
		}
		adminAuth = []func(http.Handler) http.Handler{
			jwtAuth.Middleware(),
			middleware.RequireRoleOrScope(
				[]string{middleware.RoleAdmin},
				[]string{middleware.ScopeCacheWrite},
			),
		}

		checker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.JWTCACertPath, keycloakCheckTimeout)
		if err != nil {
			logger.Error("Ошибка создания проверки Keycloak", slog.String("error", err.Error()))
			log.Fatalf("Ошибка создания проверки Keycloak: %v", err)
		}
		keycloakChecker = checker

		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("LC_JWT_JWKS_URL не задан, endpoints управления кэшем отключены")
	}

	// 12. Handlers
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		service.NewHubReadinessChecker(settingsSvc),
		keycloakChecker,
	)
	apiHandler := handlers.NewAPIHandler(projectSvc, entityRepo, settingsSvc, logger)

	// 13. HTTP-сервер
	srv := server.New(cfg, logger, server.Routes{
		API:       apiHandler,
		Health:    healthHandler,
		AdminAuth: adminAuth,
	},
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	// 14. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("TK Labels Module остановлен")
}
