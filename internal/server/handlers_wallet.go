package server

import (
	"net/http"

	"github.com/rovshanmuradov/memeswap/internal/admin"
	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// GET /api/portfolio?wallet
func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.deps.Balances.Portfolio(ctx, r.URL.Query().Get("wallet"))
	if err != nil {
		writeFailure(w, err, "Failed to build portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type watchRequest struct {
	Wallet string `json:"wallet"`
	Token  string `json:"token"`
}

// GET /api/watchlist?wallet
func (s *Server) listWatch(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.deps.Watchlist.List(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		writeFailure(w, err, "Failed to load watchlist")
		return
	}
	if tokens == nil {
		tokens = []domain.TrackedToken{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// POST /api/watchlist {wallet, token}
func (s *Server) addWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	if err := s.deps.Watchlist.Add(r.Context(), req.Wallet, req.Token); err != nil {
		writeFailure(w, err, "Failed to update watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DELETE /api/watchlist?wallet&token
func (s *Server) removeWatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.deps.Watchlist.Remove(r.Context(), q.Get("wallet"), q.Get("token")); err != nil {
		writeFailure(w, err, "Failed to update watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type paperRequest struct {
	Wallet       string  `json:"wallet"`
	TokenAddress string  `json:"tokenAddress"`
	Allocation   float64 `json:"allocation"`
}

// GET /api/paper-portfolio?wallet
func (s *Server) paperPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.deps.Paper.Get(ctx, r.URL.Query().Get("wallet"))
	if err != nil {
		writeFailure(w, err, "Failed to load paper portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/paper-portfolio {wallet, tokenAddress, allocation}
func (s *Server) addPaper(w http.ResponseWriter, r *http.Request) {
	var req paperRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.deps.Paper.Add(ctx, req.Wallet, req.TokenAddress, req.Allocation)
	if err != nil {
		writeFailure(w, err, "Failed to update paper portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /api/paper-portfolio?wallet&tokenAddress
func (s *Server) removePaper(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := s.ctx(r)
	defer cancel()
	p, err := s.deps.Paper.Remove(ctx, q.Get("wallet"), q.Get("tokenAddress"))
	if err != nil {
		writeFailure(w, err, "Failed to update paper portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/admin/ath {tokenAddress, athPrice, publicKey, signature, message}
func (s *Server) updateATH(w http.ResponseWriter, r *http.Request) {
	var req admin.ATHUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	if err := s.deps.Admin.UpdateATH(r.Context(), req); err != nil {
		writeFailure(w, err, "Failed to update ATH")
		return
	}
	t, err := s.deps.Tokens.GetToken(r.Context(), req.TokenAddress)
	if err != nil {
		writeFailure(w, err, "Failed to load token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": t})
}

// POST /api/admin/verify {publicKey, signature, message}
func (s *Server) verifyWallet(w http.ResponseWriter, r *http.Request) {
	var req admin.Proof
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err, "")
		return
	}
	if err := s.deps.Admin.VerifyWallet(req); err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "isAdmin": true})
}
