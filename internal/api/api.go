// Package api serves the engine's read surface: the latest TFQE signals,
// the multi-timeframe analysis, and the latest quotes. Every response is a
// read of the published snapshot or the latest-quote table; handlers never
// touch the broker.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"fxassist/internal/bus"
	"fxassist/internal/model"
	"fxassist/internal/publisher"
)

// Server exposes the signal snapshots over HTTP/JSON.
type Server struct {
	pub    *publisher.Publisher
	latest *bus.Latest
	srv    *http.Server
}

// NewServer builds the API server on addr.
func NewServer(addr string, pub *publisher.Publisher, latest *bus.Latest) *Server {
	s := &Server{pub: pub, latest: latest}
	mux := http.NewServeMux()
	mux.HandleFunc("/signals/tfqe", s.handleTFQE)
	mux.HandleFunc("/analysis/multi-timeframe", s.handleAnalysis)
	mux.HandleFunc("/market/latest", s.handleMarketLatest)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the route mux, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// GET /signals/tfqe?symbol=USD_JPY
func (s *Server) handleTFQE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sym, ok := parseSymbol(w, r.URL.Query().Get("symbol"))
	if !ok {
		return
	}
	snap := s.pub.Snapshot()
	sig, ok := snap.TFQE[sym]
	if !ok {
		writeError(w, http.StatusNotFound, "no signal published for symbol yet")
		return
	}
	writeJSON(w, sig)
}

// POST /analysis/multi-timeframe {"symbol": "USD_JPY"}
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sym, ok := parseSymbol(w, req.Symbol)
	if !ok {
		return
	}
	snap := s.pub.Snapshot()
	an, ok := snap.Analyses[sym]
	if !ok {
		writeError(w, http.StatusNotFound, "no analysis published for symbol yet")
		return
	}
	writeJSON(w, an)
}

// GET /market/latest
func (s *Server) handleMarketLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap := s.latest.Snapshot()
	quotes := make([]model.Quote, 0, len(snap))
	for _, sym := range model.AllSymbols {
		if q, ok := snap[sym]; ok {
			quotes = append(quotes, q)
		}
	}
	writeJSON(w, quotes)
}

func parseSymbol(w http.ResponseWriter, raw string) (model.Symbol, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	sym, err := model.ParseSymbol(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return sym, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
