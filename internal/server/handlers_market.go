package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rovshanmuradov/memeswap/internal/analytics"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/marketdata"
)

const defaultUpsideInvestment = 100

// GET /api/market?pair=...|token=...&chain=solana
// An unknown market is a 200 with a null snapshot.
func (s *Server) market(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, isPair := q.Get("pair"), true
	if ref == "" {
		ref, isPair = q.Get("token"), false
	}
	if ref == "" {
		writeFailure(w, domain.Invalid("pair", "pair or token is required"), "")
		return
	}
	chain := domain.Chain(q.Get("chain"))
	if chain != "" && !chain.Valid() {
		writeFailure(w, domain.Invalid("chain", "unknown chain"), "")
		return
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	snap, err := s.deps.Market.Fetch(ctx, ref, isPair, chain)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch market data", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ref": ref, "snapshot": snap})
}

// GET /api/market/history?token=...&chain=solana&chart=candles|line&days=7
// A tracked token brings its own chain and pair. No data is a 200 with an
// empty series and an empty source.
func (s *Server) priceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := q.Get("token")
	if address == "" {
		writeFailure(w, domain.Invalid("token", ""), "")
		return
	}
	kind, days, err := marketdata.ParseChart(q.Get("chart"), q.Get("days"))
	if err != nil {
		writeFailure(w, err, "")
		return
	}

	ctx, cancel := s.ctx(r)
	defer cancel()

	var tok domain.TrackedToken
	t, err := s.deps.Tokens.GetToken(ctx, address)
	switch {
	case err == nil:
		tok = *t
	case errors.Is(err, domain.ErrNotFound):
		chain := domain.Chain(q.Get("chain"))
		if chain != "" && !chain.Valid() {
			writeFailure(w, domain.Invalid("chain", "unknown chain"), "")
			return
		}
		tok = domain.TrackedToken{Address: address, Chain: chain}
	default:
		writeFailure(w, err, "Failed to load token")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.History.Get(ctx, tok, kind, days))
}

// GET /api/tokens?category
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.deps.Tokens.ListTokens(r.Context(), domain.Category(r.URL.Query().Get("category")))
	if err != nil {
		writeFailure(w, err, "Failed to list tokens")
		return
	}
	if tokens == nil {
		tokens = []domain.TrackedToken{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Server) tokenView(r *http.Request) (analytics.TokenView, error) {
	t, err := s.deps.Tokens.GetToken(r.Context(), r.PathValue("address"))
	if err != nil {
		return analytics.TokenView{}, err
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	return analytics.NewTokenView(*t, s.deps.Market.GetMarketData(ctx, *t)), nil
}

// GET /api/tokens/{address}
func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	view, err := s.tokenView(r)
	if err != nil {
		writeFailure(w, err, "Failed to load token")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/tokens/{address}/upside?investment=100
func (s *Server) upside(w http.ResponseWriter, r *http.Request) {
	investment := float64(defaultUpsideInvestment)
	if raw := r.URL.Query().Get("investment"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeFailure(w, domain.Invalid("investment", "must be a positive number"), "")
			return
		}
		investment = v
	}
	view, err := s.tokenView(r)
	if err != nil {
		writeFailure(w, err, "Failed to load token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        view.Address,
		"price":        view.Market.Price,
		"athPrice":     view.ATHPrice,
		"percentToAth": view.PercentToATH,
		"upside":       analytics.UpsideToATH(investment, view.Market.Price, view.ATHPrice),
	})
}

// latestBoard returns the poller's board, refreshing once if nothing was applied yet.
func (s *Server) latestBoard(r *http.Request) (marketdata.Board, error) {
	b := s.deps.Board.Latest()
	if !b.UpdatedAt.IsZero() {
		return b, nil
	}
	return s.deps.Board.Refresh(r.Context())
}

// GET /api/board
func (s *Server) board(w http.ResponseWriter, r *http.Request) {
	b, err := s.latestBoard(r)
	if err != nil {
		writeFailure(w, err, "Failed to load market board")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/leaderboard?kind=gainers&limit=10
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	kind := analytics.BoardKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = analytics.BoardGainers
	}
	b, err := s.latestBoard(r)
	if err != nil {
		writeFailure(w, err, "Failed to load market board")
		return
	}
	views, err := analytics.Leaderboard(b.Views, kind, limit)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "tokens": views, "updatedAt": b.UpdatedAt})
}

// GET /api/categories
func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	b, err := s.latestBoard(r)
	if err != nil {
		writeFailure(w, err, "Failed to load market board")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": analytics.Categories(b.Views)})
}
