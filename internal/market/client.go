package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"polypaper/internal/config"
	apperrors "polypaper/internal/errors"
	"polypaper/internal/logging"
	"polypaper/internal/metrics"
	"polypaper/internal/models"
	"polypaper/internal/resilience"
	"polypaper/internal/security"
	"polypaper/pkg/utils"
)

const maxBodyBytes = 16 << 20

// Client is a Gateway over the provider's HTTP API. Requests go to the base URL first and
// then to each fallback URL in order when an endpoint is unreachable or failing.
type Client struct {
	endpoints  []*endpoint
	httpClient *http.Client
	retry      utils.RetryConfig
	userAgent  string
	logger     zerolog.Logger
}

type endpoint struct {
	base    string
	name    string // base with credentials redacted, for logs and errors
	breaker *resilience.Breaker
}

// NewClient creates a market data client from configuration.
func NewClient(cfg config.MarketConfig, logger zerolog.Logger) *Client {
	logger = logger.With().Str("component", "market").Logger()

	bases := append([]string{cfg.BaseURL}, cfg.FallbackURLs...)
	endpoints := make([]*endpoint, 0, len(bases))
	for _, base := range bases {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base == "" {
			continue
		}
		name := security.RedactURL(base)
		endpoints = append(endpoints, &endpoint{
			base:    base,
			name:    name,
			breaker: resilience.NewBreaker(name, resilience.DefaultBreakerConfig(), logger),
		})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	if cfg.InitialBackoff > 0 {
		retry.InitialDelay = cfg.InitialBackoff
	}
	retry.MaxDelay = 5 * time.Second
	retry.ShouldRetry = apperrors.IsRetryable

	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
}

// ActiveEvents returns active, non-closed events.
func (c *Client) ActiveEvents(ctx context.Context, limit, offset int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := url.Values{}
	query.Set("closed", "false")
	query.Set("active", "true")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var events []models.Event
	if err := c.getJSON(ctx, "active_events", "/events", query, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EventBySlug returns one event. Any non-success status from the provider is reported as NotFoundError.
func (c *Client) EventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperrors.NewValidationError("slug", slug, "slug is required")
	}

	var event models.Event
	err := c.getJSON(ctx, "event_by_slug", "/events/slug/"+url.PathEscape(slug), nil, &event)
	if err != nil {
		var pe *apperrors.ProviderError
		if apperrors.As(err, &pe) && pe.Status != 0 && pe.Status != http.StatusOK {
			return nil, apperrors.NewNotFoundError("event", slug)
		}
		return nil, err
	}
	return &event, nil
}

// Search runs a free-text search over events.
func (c *Client) Search(ctx context.Context, query string) ([]models.Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query", query, "search query is required")
	}
	params := url.Values{}
	params.Set("q", query)

	var result models.SearchResult
	if err := c.getJSON(ctx, "search", "/public-search", params, &result); err != nil {
		return nil, err
	}
	if result.Events == nil {
		return []models.Event{}, nil
	}
	return result.Events, nil
}

// getJSON fetches path from the first healthy endpoint and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	start := time.Now()
	logger := logging.WithOperation(c.logger, op)

	var lastErr error
	for _, ep := range c.endpoints {
		if err := ep.breaker.Allow(); err != nil {
			lastErr = apperrors.NewProviderError(op, ep.name+path, 0, err)
			continue
		}

		err := utils.Retry(ctx, c.retry, func() error {
			return c.fetch(ctx, op, ep.base, path, query, out)
		})
		if err == nil {
			ep.breaker.Success()
			metrics.ObserveGateway(op, start, nil)
			logging.LogAPICall(logger, http.MethodGet, ep.name+path, time.Since(start), nil)
			return nil
		}

		if ctx.Err() != nil {
			lastErr = apperrors.NewProviderError(op, ep.name+path, 0, ctx.Err())
			break
		}
		if !apperrors.IsRetryable(err) {
			// The endpoint answered; another endpoint would answer the same way.
			ep.breaker.Success()
			lastErr = err
			break
		}

		ep.breaker.Failure(err)
		lastErr = err
		logger.Warn().Err(err).Str("endpoint", ep.name).Msg("Market data endpoint failed, trying next")
	}

	if lastErr == nil {
		lastErr = apperrors.NewProviderError(op, path, 0, fmt.Errorf("no market data endpoint configured"))
	}
	metrics.ObserveGateway(op, start, lastErr)
	logging.LogAPICall(logger, http.MethodGet, path, time.Since(start), lastErr)
	return lastErr
}

func (c *Client) fetch(ctx context.Context, op, base, path string, query url.Values, out interface{}) error {
	fullURL := base + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	shown := security.RedactURL(fullURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return apperrors.NewProviderError(op, shown, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewProviderError(op, shown, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewProviderError(op, shown, 0, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewProviderError(op, shown, resp.StatusCode, fmt.Errorf("%s", truncate(string(body), 200)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewProviderError(op, shown, resp.StatusCode, fmt.Errorf("invalid response body: %w", err))
	}
	return nil
}

// Breakers returns the per-endpoint circuit breakers in fallback order.
func (c *Client) Breakers() []*resilience.Breaker {
	out := make([]*resilience.Breaker, len(c.endpoints))
	for i, ep := range c.endpoints {
		out[i] = ep.breaker
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Gateway = (*Client)(nil)
