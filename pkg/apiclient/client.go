// Package apiclient: общий HTTP клиент для внешних JSON API
// (Google Maps, OpenWeatherMap, Wikipedia, Tavily).
//
// Даёт то, что нужно каждому SDK поверх него:
//   - rate limiting на endpoint (golang.org/x/time/rate)
//   - повтор сетевых ошибок и ответов 429/5xx с учётом Retry-After
//   - классификацию ошибок в apperr.UpstreamError
//
// Клиент "тупой": он не знает форматов конкретных API,
// разбор ответов делают пакеты maps, weather и search.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// maxErrorBody: сколько байт тела ответа сохранять в ошибке.
const maxErrorBody = 512

// defaultBackoff: пауза перед первым повтором, если сервер не прислал Retry-After.
const defaultBackoff = 500 * time.Millisecond

// ErrorType: категория ошибки внешнего API для диагностики.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrServer
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает сообщение для пользователя.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "API key is missing or invalid. Check the api_key in config.yaml."
	case ErrTimeout:
		return "The service did not respond in time."
	case ErrNetwork:
		return "The service is unreachable. Check your network connection."
	case ErrRateLimit:
		return "Too many requests. Wait a moment and try again."
	case ErrServer:
		return "The service returned an internal error."
	default:
		return "Unexpected error while calling an external service."
	}
}

// HTTPClient: интерфейс для выполнения HTTP запросов. *http.Client его реализует.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client: HTTP клиент одного внешнего сервиса.
type Client struct {
	service       string
	baseURL       string
	httpClient    HTTPClient
	retryAttempts int
	backoff       time.Duration
	rateLimit     int // запросов в минуту
	burst         int
	headers       http.Header

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // endpoint → limiter
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет транспорт (в тестах).
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff задаёт паузу перед первым повтором; дальше она удваивается.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithHeader добавляет заголовок ко всем запросам (например, авторизацию).
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New создаёт клиент сервиса service из конфигурации.
// Нулевые поля cfg заполняются через GetDefaults.
func New(service string, cfg config.APIConfig, opts ...Option) (*Client, error) {
	cfg = cfg.GetDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base_url is required", service)
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid timeout %q: %w", service, cfg.Timeout, err)
	}

	c := &Client{
		service:       service,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: cfg.RetryAttempts,
		backoff:       defaultBackoff,
		rateLimit:     cfg.RateLimit,
		burst:         cfg.BurstLimit,
		headers:       make(http.Header),
		limiters:      make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service возвращает имя сервиса.
func (c *Client) Service() string { return c.service }

// BaseURL возвращает базовый URL без завершающего слэша.
func (c *Client) BaseURL() string { return c.baseURL }

// Get выполняет GET baseURL+path?params и декодирует JSON ответ в dest.
// endpoint: ключ rate limiter (например, "nearby_search").
func (c *Client) Get(ctx context.Context, endpoint, path string, params url.Values, dest any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, endpoint, http.MethodGet, u, nil, dest)
}

// Post отправляет body как JSON и декодирует ответ в dest.
func (c *Client) Post(ctx context.Context, endpoint, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal body: %w", c.service, err)
	}
	return c.do(ctx, endpoint, http.MethodPost, c.baseURL+path, payload, dest)
}

// do выполняет запрос с rate limiting и повторами.
//
// Тело хранится байтами, чтобы каждая попытка отправляла его заново.
func (c *Client) do(ctx context.Context, endpoint, method, rawURL string, body []byte, dest any) error {
	limiter := c.limiter(endpoint)

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter wait: %w", c.service, err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", c.service, err)
		}
		for k, vs := range c.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			utils.Warn("upstream request failed", "service", c.service, "endpoint", endpoint, "attempt", attempt, "error", err)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = c.statusError(resp.StatusCode, respBody)
			if attempt == c.retryAttempts {
				break
			}
			wait := c.retryDelay(resp.Header, attempt)
			utils.Warn("upstream request will be retried", "service", c.service, "endpoint", endpoint,
				"status", resp.StatusCode, "attempt", attempt, "retry_after", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return c.statusError(resp.StatusCode, respBody)
		}

		if dest == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, dest); err != nil {
			return apperr.ParseFailure("%s: decode response: %v", c.service, err)
		}
		return nil
	}

	var upstream *apperr.UpstreamError
	if errors.As(lastErr, &upstream) {
		return lastErr
	}
	return &apperr.UpstreamError{Service: c.service, Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}

func (c *Client) statusError(status int, body []byte) error {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &apperr.UpstreamError{Service: c.service, Status: status, Body: text}
}

// limiter возвращает limiter endpoint-а, создавая его при первом обращении.
// rateLimit в запросах/минуту переводится в запросы/секунду.
func (c *Client) limiter(endpoint string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[endpoint]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(c.rateLimit)/60.0), c.burst)
	c.limiters[endpoint] = l
	return l
}

// retryableStatus: 429 и 5xx повторяются, остальные коды окончательны.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryDelay читает Retry-After в секундах, иначе экспоненциальный backoff.
func (c *Client) retryDelay(h http.Header, attempt int) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return c.backoff << (attempt - 1)
}

// ClassifyError определяет категорию ошибки.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}
	var upstream *apperr.UpstreamError
	if errors.As(err, &upstream) && upstream.Status != 0 {
		switch {
		case upstream.Status == http.StatusUnauthorized || upstream.Status == http.StatusForbidden:
			return ErrAuthFailed
		case upstream.Status == http.StatusTooManyRequests:
			return ErrRateLimit
		case upstream.Status >= 500:
			return ErrServer
		}
		return ErrUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetwork
	}
	return ErrUnknown
}
