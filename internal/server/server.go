package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Subham-Satapathy/lunchpad/internal/config"
	"github.com/Subham-Satapathy/lunchpad/internal/hmacauth"
	"github.com/Subham-Satapathy/lunchpad/internal/ledger"
	"github.com/Subham-Satapathy/lunchpad/internal/mintauth"
	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
	"github.com/Subham-Satapathy/lunchpad/internal/replay"
)

type Server struct {
	cfg         *config.AppConfig
	mint        *mintauth.Service
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.AppConfig, mint *mintauth.Service, lc ledger.Client, store replay.Store) *Server {
	verifier := &hmacauth.Verifier{
		Secret:  cfg.Service.HMACSecret,
		MaxSkew: cfg.Service.HMACClockSkew,
	}

	s := &Server{
		cfg:     cfg,
		mint:    mint,
		hmac:    verifier,
		metrics: newMetricsRegistry(),
	}

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}
	if checker, ok := lc.(ledger.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/mint", s.hmac.Middleware(http.HandlerFunc(s.handleMint)))
	mux.Handle("/api/v1/metrics", s.metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type mintRequest struct {
	UserWallet  string  `json:"userWallet"`
	PaymentTx   string  `json:"paymentTx"`
	TokenAmount float64 `json:"tokenAmount"`
}

type mintResponse struct {
	Success           bool    `json:"success"`
	MintTransactionID string  `json:"mintTransactionId,omitempty"`
	TokenAmount       float64 `json:"tokenAmount,omitempty"`
	Error             string  `json:"error,omitempty"`
	Phase             string  `json:"phase,omitempty"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload mintRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.metrics.incRequest("bad_request")
		writeJSON(w, http.StatusBadRequest, mintResponse{Success: false, Error: "invalid json payload"})
		return
	}
	if err := validateMintRequest(payload); err != nil {
		s.metrics.incRequest("bad_request")
		writeJSON(w, http.StatusBadRequest, mintResponse{Success: false, Error: err.Error()})
		return
	}

	s.metrics.inflightMints.Inc()
	result := s.mint.Mint(r.Context(), mintauth.MintRequest{
		UserAccount:          payload.UserWallet,
		PaymentTransactionID: payload.PaymentTx,
		TokenAmount:          payload.TokenAmount,
	})
	s.metrics.inflightMints.Dec()

	if !result.Success {
		s.metrics.incRequest("failed")
		s.metrics.incFailure(result.FailureReason)
		status := http.StatusInternalServerError
		if isCallerError(result.FailureReason) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, mintResponse{
			Success: false,
			Error:   result.FailureReason + ": " + result.FailureMessage,
			Phase:   string(result.FinalState),
		})
		return
	}

	s.metrics.incRequest("minted")
	writeJSON(w, http.StatusOK, mintResponse{
		Success:           true,
		MintTransactionID: result.MintTransactionID,
		TokenAmount:       result.TokenAmount,
	})
}

func validateMintRequest(req mintRequest) error {
	if strings.TrimSpace(req.UserWallet) == "" {
		return errors.New("userWallet is required")
	}
	if strings.TrimSpace(req.PaymentTx) == "" {
		return errors.New("paymentTx is required")
	}
	if req.TokenAmount <= 0 {
		return errors.New("tokenAmount must be a positive number")
	}
	return nil
}

// isCallerError maps the failure code back to its taxonomy class: only
// caller-fixable input problems are 400s, everything downstream is a 500.
func isCallerError(code string) bool {
	switch code {
	case protocol.ErrOutOfBounds.Code, protocol.ErrInvalidAmount.Code, protocol.ErrMalformedID.Code:
		return true
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status      string `json:"status"`
		RPC         any    `json:"rpc"`
		ReplayStore any    `json:"replay_store"`
	}{
		Status:      status,
		RPC:         rpcInfo,
		ReplayStore: dbInfo,
	}

	w.Header().Set("Content-Type", "application/json")
	if !overallHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		next.ServeHTTP(w, r)
	})
}
