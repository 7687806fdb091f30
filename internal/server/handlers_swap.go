package server

import (
	"net/http"
	"strconv"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// GET /api/quote?inputMint&outputMint&amount&slippageBps
// amount is in base units of inputMint.
func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inputMint, outputMint, rawAmount := q.Get("inputMint"), q.Get("outputMint"), q.Get("amount")
	if inputMint == "" || outputMint == "" || rawAmount == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters: inputMint, outputMint, amount", "")
		return
	}
	amount, err := strconv.ParseUint(rawAmount, 10, 64)
	if err != nil {
		writeFailure(w, domain.Invalid("amount", "must be a positive integer in base units"), "")
		return
	}
	slippage, err := queryInt(r, "slippageBps", s.deps.Quotes.DefaultSlippage())
	if err != nil {
		writeFailure(w, err, "")
		return
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	quote, err := s.deps.Quotes.Request(ctx, domain.QuoteParams{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		SlippageBps: slippage,
	})
	if err != nil {
		writeFailure(w, err, "Failed to fetch quote")
		return
	}
	body, err := jupiter.WithFeeAccount(quote)
	if err != nil {
		writeFailure(w, err, "Failed to fetch quote")
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// POST /api/swap/build
func (s *Server) buildSwap(w http.ResponseWriter, r *http.Request) {
	var req swap.BuildRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	tx, err := s.deps.Builder.Build(ctx, req)
	if err != nil {
		writeFailure(w, err, "Failed to build swap transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"swapTransaction": tx})
}

// POST /api/transactions/send
func (s *Server) sendTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignedTransaction string `json:"signedTransaction"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	sig, err := s.deps.Executor.Broadcast(ctx, req.SignedTransaction)
	if err != nil {
		writeFailure(w, err, "Failed to send transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"txid": sig.String(), "success": true})
}

// GET /api/balance?wallet&mint
func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	wallet, mint := r.URL.Query().Get("wallet"), r.URL.Query().Get("mint")
	ctx, cancel := s.ctx(r)
	defer cancel()

	if mint != "" {
		bal, err := s.deps.Balances.GetBalance(ctx, wallet, mint)
		if err != nil {
			writeFailure(w, err, "Failed to fetch balance")
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"balance": bal.InexactFloat64()})
		return
	}

	all, err := s.deps.Balances.GetAllBalances(ctx, wallet)
	if err != nil {
		writeFailure(w, err, "Failed to fetch balance")
		return
	}
	out := make(map[string]float64, len(all))
	for m, b := range all {
		out[m] = b.InexactFloat64()
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

// POST /api/swaps
func (s *Server) recordSwap(w http.ResponseWriter, r *http.Request) {
	var rec domain.SwapRecord
	if err := decodeBody(w, r, &rec); err != nil {
		writeFailure(w, err, "")
		return
	}
	saved, err := s.deps.Ledger.RecordSwap(r.Context(), rec)
	if err != nil {
		writeFailure(w, err, "Failed to store swap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": saved})
}

// GET /api/swaps?wallet&token&limit
func (s *Server) swapHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	swaps, err := s.deps.Ledger.QueryHistory(r.Context(), domain.HistoryFilter{
		WalletAddress: r.URL.Query().Get("wallet"),
		TokenAddress:  r.URL.Query().Get("token"),
		Limit:         limit,
	})
	if err != nil {
		writeFailure(w, err, "Failed to fetch swap history")
		return
	}
	if swaps == nil {
		swaps = []domain.SwapRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"swaps": swaps})
}
