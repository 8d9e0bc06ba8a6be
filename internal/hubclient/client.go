// Пакет hubclient — HTTP-клиент Local Contexts Hub API.
// Запрашивает проект по идентификатору: GET {api_url}/projects/{project_id}/.
// Параметры подключения (URL, ключ) передаются в каждый вызов — они читаются
// из настроек в момент запроса и могут меняться без перезапуска.
package hubclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/tklabels-module/internal/config"
	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// Ошибки клиента Hub.
var (
	// ErrNotConfigured — не задан URL API или ключ API.
	ErrNotConfigured = errors.New("Local Contexts Hub не настроен: не задан URL или ключ API")
	// ErrInvalidURL — сформированный URL запроса некорректен.
	ErrInvalidURL = errors.New("некорректный URL запроса к Hub")
	// ErrTransport — сетевая ошибка при запросе к Hub (включая таймаут).
	ErrTransport = errors.New("ошибка соединения с Hub")
	// ErrUpstreamStatus — Hub вернул статус вне диапазона 2xx.
	ErrUpstreamStatus = errors.New("Hub вернул неуспешный статус")
	// ErrMalformedResponse — тело ответа не является JSON-объектом.
	ErrMalformedResponse = errors.New("некорректный ответ Hub")
)

// maxResponseSize — ограничение размера тела ответа Hub (1 MiB).
const maxResponseSize = 1 << 20

// Prometheus-метрики запросов к Hub.
var (
	hubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lc_hub_requests_total",
		Help: "Общее количество запросов к Local Contexts Hub (по результату).",
	}, []string{"result"})

	hubRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lc_hub_request_duration_seconds",
		Help:    "Длительность запросов к Local Contexts Hub в секундах.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// RawProject — необработанный ответ Hub (JSON-объект).
type RawProject map[string]any

// Client — HTTP-клиент Local Contexts Hub.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент Hub.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов (LC_HUB_TIMEOUT). Без таймаута запрос
// на пути рендеринга мог бы зависнуть бесконечно.
func New(caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата Hub: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат Hub добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "hub_client")),
	}, nil
}

// ProjectURL формирует URL запроса проекта: {api_url}/projects/{project_id}/.
// Возвращает ErrNotConfigured при пустом URL и ErrInvalidURL, если идентификатор
// равен "." или "..", либо результат не является абсолютным http(s) URL с хостом.
func ProjectURL(apiURL, projectID string) (string, error) {
	if apiURL == "" {
		return "", ErrNotConfigured
	}
	// PathEscape не экранирует точки: ".." увёл бы запрос из /projects/
	if projectID == "." || projectID == ".." {
		return "", fmt.Errorf("%w: недопустимый идентификатор проекта %q", ErrInvalidURL, projectID)
	}

	reqURL := fmt.Sprintf("%s/projects/%s/", strings.TrimRight(apiURL, "/"), url.PathEscape(projectID))

	u, err := url.Parse(reqURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidURL, reqURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, reqURL)
	}
	return reqURL, nil
}

// GetProject запрашивает проект в Hub.
// GET {api_url}/projects/{project_id}/ с заголовками X-Api-Key и Accept: application/json.
// Любая ошибка (настройки, сеть, статус, формат тела) возвращается обёрнутой
// в одну из sentinel-ошибок пакета.
func (c *Client) GetProject(ctx context.Context, settings model.Settings, projectID string) (RawProject, error) {
	if settings.APIURL == "" || settings.APIKey == "" {
		hubRequestsTotal.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}

	reqURL, err := ProjectURL(settings.APIURL, projectID)
	if err != nil {
		hubRequestsTotal.WithLabelValues("invalid_url").Inc()
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		hubRequestsTotal.WithLabelValues("invalid_url").Inc()
		return nil, fmt.Errorf("%w: создание запроса: %v", ErrInvalidURL, err)
	}
	req.Header.Set("X-Api-Key", settings.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tklabels-module/"+config.Version)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из настроек Hub
	hubRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		hubRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: запрос к %s: %v", ErrTransport, settings.APIURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		hubRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: чтение ответа: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		hubRequestsTotal.WithLabelValues("status_error").Inc()
		return nil, fmt.Errorf("%w: статус %d для проекта %s: %s",
			ErrUpstreamStatus, resp.StatusCode, projectID, truncate(string(body), 200))
	}

	raw, err := decodeProject(body)
	if err != nil {
		hubRequestsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}
	if raw == nil {
		hubRequestsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: тело ответа не является JSON-объектом", ErrMalformedResponse)
	}

	hubRequestsTotal.WithLabelValues("success").Inc()
	c.logger.Debug("Проект получен от Hub",
		slog.String("project_id", projectID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return raw, nil
}

// decodeProject декодирует тело ответа Hub.
// Числа остаются json.Number, чтобы не терять разряды больших идентификаторов.
// Декодирование в map отклоняет массивы, строки и числа;
// null даёт nil map, данные после объекта считаются ошибкой.
func decodeProject(body []byte) (RawProject, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw RawProject
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: декодирование JSON: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: лишние данные после JSON-объекта", ErrMalformedResponse)
	}
	return raw, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// truncate обрезает строку до n байт для сообщений об ошибках.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
