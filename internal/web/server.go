// Package web exposes the portfolio over HTTP: JSON endpoints for the ledger
// and trades, and SSE streams for valuations.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/valuation"
	"github.com/vadiminshakov/folio/internal/storage/journal"
)

const (
	snapshotPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
	maxBodyBytes         = 1 << 16
)

type valuationService interface {
	Compute(ctx context.Context) (domain.PortfolioValuation, error)
	Subscribe(ctx context.Context) <-chan valuation.Update
	Refresh()
}

type lotReader interface {
	Lots(ctx context.Context) ([]domain.AssetLot, error)
	Lot(ctx context.Context, assetID string) (*domain.AssetLot, error)
}

type balanceService interface {
	CashBalance(ctx context.Context) (domain.Money, error)
	AdjustCashBalance(ctx context.Context, raw string) error
}

type tradeExecutor interface {
	Submit(ctx context.Context, req domain.TradeRequest) (domain.TradeOutcome, error)
}

type tradeLog interface {
	Trades() []journal.Record
}

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.ValuationSnapshotRecord, error)
}

// Deps are the services the server exposes.
type Deps struct {
	Valuation valuationService
	Lots      lotReader
	Balance   balanceService
	Trades    tradeExecutor
	Journal   tradeLog
	Snapshots snapshotReader
}

// Server serves the HTTP API.
type Server struct {
	Addr string
	deps Deps
	l    *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, deps: deps, l: logger}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /valuation", s.handleValuation)
	mux.HandleFunc("POST /valuation/refresh", s.handleRefresh)
	mux.HandleFunc("GET /valuation/stream", s.handleValuationStream)
	mux.HandleFunc("GET /valuation/history/stream", s.handleHistoryStream)
	mux.HandleFunc("GET /lots", s.handleLots)
	mux.HandleFunc("GET /lots/{asset}", s.handleLot)
	mux.HandleFunc("GET /balance", s.handleBalance)
	mux.HandleFunc("POST /balance", s.handleAdjustBalance)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("POST /trades", s.handleSubmitTrade)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.shutdownOnDone(ctx, server)

	s.l.Info("web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with certificates issued via ACME.
// It also serves HTTP-01 challenges on port 80.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go s.shutdownOnDone(ctx, httpSrv)
	go s.shutdownOnDone(ctx, httpsSrv)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.l.Info("web server listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) shutdownOnDone(ctx context.Context, server *http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.l.Warn("server shutdown error", zap.String("addr", server.Addr), zap.Error(err))
	}
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Valuation.Compute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.deps.Valuation.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLots(w http.ResponseWriter, r *http.Request) {
	lots, err := s.deps.Lots.Lots(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lots)
}

func (s *Server) handleLot(w http.ResponseWriter, r *http.Request) {
	asset := domain.NormalizeAssetID(r.PathValue("asset"))
	lot, err := s.deps.Lots.Lot(r.Context(), asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if lot == nil {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("%s is not held", asset)})
		return
	}
	s.writeJSON(w, http.StatusOK, lot)
}

type balanceBody struct {
	Cash domain.Money `json:"cash"`
}

type adjustBalanceBody struct {
	Amount string `json:"amount"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	cash, err := s.deps.Balance.CashBalance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceBody{Cash: cash})
}

// handleAdjustBalance always answers with the resulting balance. Invalid
// amounts leave it unchanged.
func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var body adjustBalanceBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.deps.Balance.AdjustCashBalance(r.Context(), body.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleBalance(w, r)
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Journal == nil {
		s.writeJSON(w, http.StatusOK, []journal.Record{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Journal.Trades())
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req domain.TradeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	outcome, err := s.deps.Trades.Submit(r.Context(), req)
	if err != nil {
		s.writeJSON(w, statusOf(err), outcome)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

type errorBody struct {
	Kind  string `json:"kind,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

func newErrorBody(err error) errorBody {
	return errorBody{
		Kind:  domain.KindOf(err).String(),
		Code:  string(domain.CodeOf(err)),
		Error: err.Error(),
	}
}

// statusOf maps the error taxonomy onto HTTP statuses.
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.l.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, newErrorBody(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Debug("write response", zap.Error(err))
	}
}
