package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

const quoteJSON = `{"inputMint":"So11111111111111111111111111111111111111112","inAmount":"100000000",
"outputMint":"Tok","outAmount":"4242","otherAmountThreshold":"4100","swapMode":"ExactIn",
"slippageBps":300,"priceImpactPct":"0.01","routePlan":[{"percent":100}]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, nil, zap.NewNop())
}

func TestQuoteWithPlatformFee(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "100000000", q.Get("amount"))
		assert.Equal(t, "300", q.Get("slippageBps"))
		assert.Equal(t, "100", q.Get("platformFeeBps"))
		fmt.Fprint(w, quoteJSON)
	})

	quote, err := c.Quote(context.Background(), QuoteRequest{
		InputMint: domain.NativeMint, OutputMint: "Tok", Amount: 100_000_000, SlippageBps: 300, PlatformFeeBps: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "4242", quote.OutAmount)
	assert.Equal(t, "0.01", quote.PriceImpactPct)
	assert.JSONEq(t, `[{"percent":100}]`, string(quote.RoutePlan))
	assert.JSONEq(t, quoteJSON, string(quote.Raw))
	assert.Equal(t, domain.QuoteParams{InputMint: domain.NativeMint, OutputMint: "Tok", Amount: 100_000_000, SlippageBps: 300}, quote.Params)
}

func TestQuoteWithoutFeeOmitsParam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["platformFeeBps"]
		assert.False(t, present)
		fmt.Fprint(w, quoteJSON)
	})

	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "Tok", OutputMint: domain.USDCMint, Amount: 1, SlippageBps: 50})
	require.NoError(t, err)
}

func TestQuoteClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Could not find any route"}`)
	})

	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "Could not find any route")
	assert.EqualValues(t, 1, calls.Load())
}

func TestQuoteServerErrorRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, quoteJSON)
	})

	quote, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, "4242", quote.OutAmount)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSwapTransactionBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "Trader111", body["userPublicKey"])
		assert.Equal(t, true, body["wrapAndUnwrapSol"])
		assert.Equal(t, true, body["dynamicComputeUnitLimit"])
		assert.Equal(t, "FeeAcc", body["feeAccount"])

		quote := body["quoteResponse"].(map[string]any)
		_, leaked := quote["feeAccount"]
		assert.False(t, leaked)

		prio := body["prioritizationFeeLamports"].(map[string]any)["priorityLevelWithMaxLamports"].(map[string]any)
		assert.Equal(t, float64(1_000_000), prio["maxLamports"])
		assert.Equal(t, "high", prio["priorityLevel"])

		fmt.Fprint(w, `{"swapTransaction":"AQID","lastValidBlockHeight":1}`)
	})

	stripped, fee, err := SplitFeeAccount(json.RawMessage(`{"inAmount":"1","feeAccount":"FeeAcc"}`))
	require.NoError(t, err)
	assert.Equal(t, "FeeAcc", fee)

	tx, err := c.SwapTransaction(context.Background(), SwapRequest{
		QuoteResponse:    stripped,
		UserPublicKey:    "Trader111",
		WrapAndUnwrapSol: true,
		FeeAccount:       fee,
		Priority:         DefaultPriorityFee(),
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
}

func TestSwapTransactionFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})

	_, err := c.SwapTransaction(context.Background(), SwapRequest{QuoteResponse: json.RawMessage(`{}`), Priority: DefaultPriorityFee()})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWithFeeAccount(t *testing.T) {
	q := &domain.Quote{Raw: json.RawMessage(`{"inAmount":"5"}`), PlatformFeeAccount: "FeeAcc"}
	out, err := WithFeeAccount(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inAmount":"5","feeAccount":"FeeAcc"}`, string(out))

	q.PlatformFeeAccount = ""
	out, err = WithFeeAccount(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inAmount":"5"}`, string(out))
}

func TestPriorityFeeValidate(t *testing.T) {
	assert.NoError(t, DefaultPriorityFee().Validate())
	assert.Error(t, PriorityFee{Level: "ludicrous", MaxLamports: 1}.Validate())
	assert.Error(t, PriorityFee{Level: PriorityHigh}.Validate())
}
