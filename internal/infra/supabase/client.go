// Package supabase stores User aggregates in a Supabase (PostgREST) table.
// Each row carries the whole aggregate as a jsonb document plus the
// columns that need unique constraints and the version used for
// conditional updates.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const storeName = "supabase"

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client. A nil cb gets a breaker that
// ignores not-found and constraint responses.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if cb == nil {
		cb = resilience.NewCircuitBreaker("supabase-users", isBenign)
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST response.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// doRequest executes an authenticated GET against PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	c.setHeaders(req, "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// read runs fn through the breaker with retries. Client errors (4xx) and
// domain errors are not retried.
func (c *Client) read(ctx context.Context, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			err := fn()
			if err == nil {
				return nil
			}
			var se *statusError
			if errors.As(err, &se) && se.Status < 500 {
				return resilience.Permanent(err)
			}
			if isDomainError(err) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	return err
}

// write runs fn through the breaker once. A write that timed out may have
// landed, so it is never retried.
func (c *Client) write(fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// translate maps transport and PostgREST failures onto domain errors.
func (c *Client) translate(err error) error {
	if isDomainError(err) {
		return err
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusConflict:
			return &domain.ErrDuplicate{Key: constraintKey(se.Body)}
		case se.Status >= 500:
			return &domain.ErrStorageUnavailable{Store: storeName, Err: err}
		}
		return fmt.Errorf("supabase: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("supabase: store unavailable", zap.Error(err))
		return &domain.ErrStorageUnavailable{Store: storeName, Err: err}
	}
	return fmt.Errorf("supabase: %w", err)
}

func isDomainError(err error) bool {
	var (
		nf       *domain.ErrNotFound
		conflict *domain.ErrConflict
		dup      *domain.ErrDuplicate
	)
	return errors.As(err, &nf) || errors.As(err, &conflict) || errors.As(err, &dup)
}

func isBenign(err error) bool {
	if err == nil || isDomainError(err) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.Status < 500
}
