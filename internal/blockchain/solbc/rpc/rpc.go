// internal/blockchain/solbc/rpc/rpc.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

// Основные константы
const (
	retryAttempts = 2
	retryDelay    = 500 * time.Millisecond
	reqTimeout    = 15 * time.Second
)

// Основные ошибки
var (
	ErrNoRPCNodes = errors.New("no RPC nodes available")
	ErrTimeout    = errors.New("request timeout")
)

// RPCClient распределяет запросы по нескольким RPC узлам
type RPCClient struct {
	nodes   []*solanarpc.Client
	urls    []string
	current int
	timeout time.Duration
	mu      sync.Mutex
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewClient создает новый RPC клиент
func NewClient(urls []string, timeout time.Duration, m *metrics.Collector, logger *zap.Logger) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}
	if timeout <= 0 {
		timeout = reqTimeout
	}

	nodes := make([]*solanarpc.Client, len(urls))
	for i, url := range urls {
		nodes[i] = solanarpc.New(url)
	}

	return &RPCClient{
		nodes:   nodes,
		urls:    urls,
		timeout: timeout,
		metrics: m,
		logger:  logger.Named("rpc-client"),
	}, nil
}

// next возвращает текущий узел и сдвигает указатель на следующий
func (c *RPCClient) next() (*solanarpc.Client, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, url := c.nodes[c.current], c.urls[c.current]
	c.current = (c.current + 1) % len(c.nodes)
	return node, url
}

// Primary returns the node the next request would go to, without rotating.
func (c *RPCClient) Primary() *solanarpc.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[c.current]
}

// ExecuteWithRetry выполняет RPC-запрос с автоматическим переключением узлов при ошибке.
// Only use it for reads: the operation may run on more than one node.
func (c *RPCClient) ExecuteWithRetry(ctx context.Context, method string, operation func(*solanarpc.Client) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tries := max(retryAttempts, len(c.nodes))
	attempt := 0

	_, err := backoff.Retry(timeoutCtx, func() (struct{}, error) {
		attempt++
		node, url := c.next()

		start := time.Now()
		err := operation(node)
		c.metrics.RecordRPC(method, time.Since(start))
		if err == nil {
			return struct{}{}, nil
		}

		c.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if timeoutCtx.Err() != nil {
			return struct{}{}, backoff.Permanent(ErrTimeout)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)),
		backoff.WithMaxTries(uint(tries)),
	)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%s: all retry attempts failed: %w", method, err)
	}
	return nil
}
