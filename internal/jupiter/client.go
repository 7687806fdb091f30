// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultBaseURL = "https://lite-api.jup.ag/swap/v1"
	quoteMaxTries  = 2
)

// APIError carries the aggregator's status and body verbatim.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter api error: status %d: %s", e.Status, e.Body)
}

// QuoteRequest is a /quote call. PlatformFeeBps of 0 omits the fee param.
type QuoteRequest struct {
	InputMint      string
	OutputMint     string
	Amount         uint64
	SlippageBps    int
	PlatformFeeBps int
}

// SwapRequest is a /swap call.
type SwapRequest struct {
	QuoteResponse    json.RawMessage
	UserPublicKey    string
	WrapAndUnwrapSol bool
	FeeAccount       string
	Priority         PriorityFee
}

// Client talks to the Jupiter swap API.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, m *metrics.Collector, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger.Named("jupiter"),
	}
}

// Quote requests a routed quote. Transport errors and 5xx are retried once;
// 4xx responses are returned immediately as *APIError.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.PlatformFeeBps > 0 {
		q.Set("platformFeeBps", strconv.Itoa(req.PlatformFeeBps))
	}
	endpoint := c.baseURL + "/quote?" + q.Encode()

	operation := func() ([]byte, error) {
		body, err := c.do(ctx, http.MethodGet, endpoint, nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(quoteMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("quote request failed, retrying", zap.Error(err), zap.Duration("backoff", d))
		}),
	)
	c.metrics.RecordUpstream("jupiter", "quote", err)
	if err != nil {
		return nil, err
	}

	quote, err := decodeQuote(body)
	if err != nil {
		return nil, err
	}
	quote.Params = domain.QuoteParams{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
	}
	return quote, nil
}

func decodeQuote(body []byte) (*domain.Quote, error) {
	var q domain.Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if q.InAmount == "" || q.OutAmount == "" {
		return nil, fmt.Errorf("decode quote: missing amounts")
	}
	// feeAccount never comes from the aggregator
	q.PlatformFeeAccount = ""
	q.Raw = json.RawMessage(body)
	return &q, nil
}

type swapBody struct {
	QuoteResponse             json.RawMessage   `json:"quoteResponse"`
	UserPublicKey             string            `json:"userPublicKey"`
	WrapAndUnwrapSol          bool              `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool              `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports prioritizationFee `json:"prioritizationFeeLamports"`
	FeeAccount                string            `json:"feeAccount,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapTransaction builds the unsigned, base64-serialized swap transaction.
// It is never retried: a failed build may mean the quote went stale.
func (c *Client) SwapTransaction(ctx context.Context, req SwapRequest) (string, error) {
	payload, err := json.Marshal(swapBody{
		QuoteResponse:             req.QuoteResponse,
		UserPublicKey:             req.UserPublicKey,
		WrapAndUnwrapSol:          req.WrapAndUnwrapSol,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: req.Priority.wire(),
		FeeAccount:                req.FeeAccount,
	})
	if err != nil {
		return "", fmt.Errorf("encode swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", payload)
	c.metrics.RecordUpstream("jupiter", "swap", err)
	if err != nil {
		return "", err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("decode swap response: empty swapTransaction")
	}
	return resp.SwapTransaction, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// SplitFeeAccount removes feeAccount from a quote object posted back by a
// client and returns it separately, since the build call takes it as its
// own parameter.
func SplitFeeAccount(quote json.RawMessage) (json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(quote, &fields); err != nil {
		return nil, "", fmt.Errorf("decode quoteResponse: %w", err)
	}
	raw, ok := fields["feeAccount"]
	if !ok {
		return quote, "", nil
	}
	delete(fields, "feeAccount")

	var feeAccount string
	_ = json.Unmarshal(raw, &feeAccount)

	stripped, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("encode quoteResponse: %w", err)
	}
	return stripped, feeAccount, nil
}

// WithFeeAccount returns the quote's raw object with feeAccount attached,
// the shape the HTTP quote endpoint returns to clients.
func WithFeeAccount(q *domain.Quote) (json.RawMessage, error) {
	if q.PlatformFeeAccount == "" {
		return q.Raw, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(q.Raw, &fields); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	acc, _ := json.Marshal(q.PlatformFeeAccount)
	fields["feeAccount"] = acc
	return json.Marshal(fields)
}
