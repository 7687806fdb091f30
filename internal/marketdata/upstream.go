// internal/marketdata/upstream.go
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	historyMaxTries = 3
	// market_chart с days=max заметно больше обычного ответа
	maxHistoryBody = 8 << 20
)

// StatusError is a non-200 answer from an upstream API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Status, e.Body)
}

// retryGetter performs rate-limited GETs. Transport errors, 429 and 5xx are
// retried with exponential backoff; every other status is final.
type retryGetter struct {
	client    *http.Client
	limiter   *rate.Limiter
	header    http.Header
	retryWait time.Duration
	logger    *zap.Logger
}

func (g *retryGetter) get(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range g.header {
			req.Header[k] = v
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			serr := &StatusError{Status: resp.StatusCode, Body: string(body)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return nil, serr
			}
			return nil, backoff.Permanent(serr)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxHistoryBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	if g.retryWait > 0 {
		b.InitialInterval = g.retryWait
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(historyMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			g.logger.Debug("upstream request failed, retrying", zap.Error(err), zap.Duration("backoff", d))
		}),
	)
}
