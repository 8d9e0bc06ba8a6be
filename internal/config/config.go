// Пакет config — загрузка и валидация конфигурации TK Labels Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые бэкенды кэша проектов.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации TK Labels Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Local Contexts Hub ---

	// Базовый URL API Hub
	APIURL string
	// Ключ API Hub (может быть пустым — запросы к Hub будут отклоняться до настройки)
	APIKey string
	// Машинное имя поля сущности с идентификатором проекта
	FieldIdentifier string
	// Таймаут запросов к Hub (по умолчанию 5s)
	HubTimeout time.Duration
	// Путь к CA-сертификату для TLS к Hub (пустая строка — системный пул)
	HubCACertPath string

	// --- Кэш проектов ---

	// Бэкенд кэша: memory или postgres
	CacheBackend string
	// TTL записей кэша (по умолчанию 7 дней)
	CacheTTL time.Duration
	// Максимальное количество записей in-memory кэша
	CacheMaxSize int
	// Интервал очистки истёкших записей PostgreSQL-кэша
	CacheCleanupInterval time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- JWT (административные endpoints кэша) ---

	// URL JWKS endpoint Keycloak. Пустой — административные endpoints отключены.
	JWTJWKSURL string
	// Ожидаемый issuer (пустой — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату для TLS к Keycloak
	JWTCACertPath string
	// Группы IdP, дающие роль admin
	RoleAdminGroups []string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:funlen,cyclop // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LC_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("LC_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("LC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LC_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	logLevel := getEnvDefault("LC_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("LC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LC_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("LC_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("LC_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("LC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("LC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Local Contexts Hub ---

	// LC_API_URL — базовый URL API (по умолчанию sandbox Hub)
	cfg.APIURL = strings.TrimRight(getEnvDefault("LC_API_URL", "https://sandbox.localcontextshub.org/api/v2"), "/")
	if u, parseErr := url.Parse(cfg.APIURL); parseErr != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("LC_API_URL: некорректный URL %q", cfg.APIURL)
	}

	// LC_API_KEY — не обязателен при старте: без ключа сервис отвечает пустыми записями
	cfg.APIKey = os.Getenv("LC_API_KEY")
	cfg.FieldIdentifier = getEnvDefault("LC_FIELD_IDENTIFIER", "field_project_id")

	cfg.HubTimeout, err = getEnvPositiveDuration("LC_HUB_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_HUB_TIMEOUT: %w", err)
	}
	cfg.HubCACertPath = os.Getenv("LC_HUB_CA_CERT_PATH")

	// --- Кэш проектов ---

	cfg.CacheBackend = getEnvDefault("LC_CACHE_BACKEND", CacheBackendMemory)
	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendPostgres {
		return nil, fmt.Errorf("LC_CACHE_BACKEND: недопустимое значение %q, допустимые: memory, postgres", cfg.CacheBackend)
	}

	// LC_CACHE_TTL — TTL записей кэша (по умолчанию 7 дней)
	cfg.CacheTTL, err = getEnvPositiveDuration("LC_CACHE_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LC_CACHE_TTL: %w", err)
	}

	cfg.CacheMaxSize, err = getEnvInt("LC_CACHE_MAX_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("LC_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize < 1 {
		return nil, fmt.Errorf("LC_CACHE_MAX_SIZE: значение должно быть > 0")
	}

	cfg.CacheCleanupInterval, err = getEnvPositiveDuration("LC_CACHE_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LC_CACHE_CLEANUP_INTERVAL: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("LC_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("LC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("LC_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("LC_DB_NAME", "tklabels")
	cfg.DBUser, err = getEnvRequired("LC_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("LC_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("LC_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("LC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = os.Getenv("LC_JWT_JWKS_URL")
	cfg.JWTIssuer = os.Getenv("LC_JWT_ISSUER")
	cfg.JWTCACertPath = os.Getenv("LC_JWT_CA_CERT_PATH")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("LC_ROLE_ADMIN_GROUPS", "artstore-admins"))

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("LC_DEPHEALTH_GROUP", "tklabels")
	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("LC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// HubSettings возвращает параметры Hub из окружения.
// Используются как значения по умолчанию для настроек, хранящихся в БД.
func (c *Config) HubSettings() model.Settings {
	return model.Settings{
		APIURL:          c.APIURL,
		APIKey:          c.APIKey,
		FieldIdentifier: c.FieldIdentifier,
	}
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — как getEnvDuration, но значение должно быть > 0.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает список через запятую, пропуская пустые элементы.
func parseCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}
