package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/stakevault/internal/auth"
	"github.com/elys-network/stakevault/internal/config"
	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultReceiptLimit = 20
	maxReceiptLimit     = 100
	maxBodyBytes        = 1 << 20
)

// VaultHost is what the API needs from the host.
type VaultHost interface {
	Instantiate(ctx context.Context, sender types.Identity, msg types.InstantiateMsg) (*types.OperationReceipt, *types.VaultConfig, error)
	Execute(ctx context.Context, info types.MessageInfo, msg types.ExecuteMsg) (*types.OperationReceipt, error)
	Config(ctx context.Context) (*types.VaultConfig, error)
	RecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error)
}

// Authenticator verifies a signed request and returns the signer's address.
type Authenticator interface {
	Verify(ctx context.Context, action string, req auth.SignedRequest) (types.Identity, error)
}

// ExecuteRequest is the signed body of POST /api/execute. Sender is optional and, when set,
// must match the signer. DepositTx names the bank send that pays for a purchase.
type ExecuteRequest struct {
	Sender    string           `json:"sender,omitempty"`
	DepositTx string           `json:"deposit_tx,omitempty"`
	Msg       types.ExecuteMsg `json:"msg"`
}

// WebServer exposes vault operations and their receipts over HTTP.
type WebServer struct {
	router   *mux.Router
	port     string
	host     VaultHost
	authn    Authenticator
	dbCheck  func() error
	gatherer prometheus.Gatherer
}

// NewWebServer creates a web server. dbCheck reports storage health for /health.
func NewWebServer(port string, host VaultHost, authn Authenticator, dbCheck func() error, gatherer prometheus.Gatherer) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		host:     host,
		authn:    authn,
		dbCheck:  dbCheck,
		gatherer: gatherer,
	}

	server.setupRoutes()
	return server
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.gatherer != nil {
		ws.router.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/instantiate", ws.handleInstantiate).Methods("POST")
	api.HandleFunc("/execute", ws.handleExecute).Methods("POST")
	api.HandleFunc("/config", ws.handleGetConfig).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := true
	if ws.dbCheck != nil {
		if err := ws.dbCheck(); err != nil {
			webLogger.Warn().Err(err).Msg("Database health check failed")
			dbHealthy = false
		}
	}

	_, cfgErr := ws.host.Config(r.Context())
	initialized := cfgErr == nil

	status, statusCode := "OK", http.StatusOK
	if !dbHealthy {
		status, statusCode = "DEGRADED", http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
		},
		"component": map[string]interface{}{
			"name":    config.ContractName,
			"version": config.ContractVersion,
			"mode":    config.VaultMode,
		},
		"vault_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"initialized":      initialized,
		},
	})
}

func (ws *WebServer) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	signer, body, ok := ws.authenticate(w, r, auth.ActionInstantiate)
	if !ok {
		return
	}

	var msg types.InstantiateMsg
	if err := decodeStrict(body, &msg); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid instantiate message: "+err.Error())
		return
	}

	receipt, cfg, err := ws.host.Instantiate(r.Context(), signer, msg)
	if err != nil {
		ws.writeOperationError(w, receipt, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receipt": receipt,
		"config":  cfg,
	})
}

func (ws *WebServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	signer, body, ok := ws.authenticate(w, r, auth.ActionExecute)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := decodeStrict(body, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid execute request: "+err.Error())
		return
	}
	if req.Sender != "" && types.Identity(req.Sender) != signer {
		webLogger.Warn().Str("claimed", req.Sender).Str("signer", signer.String()).Msg("Sender does not match signer")
		ws.writeOperationError(w, nil, fmt.Errorf("%w: sender does not match signer", types.ErrUnauthenticated))
		return
	}

	info := types.MessageInfo{Sender: signer, DepositTx: req.DepositTx}
	receipt, err := ws.host.Execute(r.Context(), info, req.Msg)
	if err != nil {
		ws.writeOperationError(w, receipt, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := ws.host.Config(r.Context())
	if err != nil {
		if errors.Is(err, types.ErrConfigMissing) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Vault is not instantiated")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to load vault config")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve vault config")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cfg)
}

func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := defaultReceiptLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= maxReceiptLimit {
			limit = parsedLimit
		}
	}

	receipts, err := ws.host.RecentReceipts(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}
	if receipts == nil {
		receipts = []types.OperationReceipt{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	})
}

// StatusForError maps an error class onto an HTTP status code.
func StatusForError(err error) int {
	switch types.Classify(err) {
	case types.ErrorClassAuthorization:
		return http.StatusForbidden
	case types.ErrorClassPrecondition:
		return http.StatusUnprocessableEntity
	case types.ErrorClassExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) writeOperationError(w http.ResponseWriter, receipt *types.OperationReceipt, err error) {
	ws.writeJSONResponse(w, StatusForError(err), map[string]interface{}{
		"error":       true,
		"error_class": types.Classify(err),
		"message":     err.Error(),
		"receipt":     receipt,
		"timestamp":   time.Now().UTC(),
	})
}

// authenticate decodes the signed envelope and verifies it. On failure the response is written
// and ok is false.
func (ws *WebServer) authenticate(w http.ResponseWriter, r *http.Request, action string) (signer types.Identity, body []byte, ok bool) {
	var envelope auth.SignedRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid signed request: "+err.Error())
		return "", nil, false
	}

	signer, err := ws.authn.Verify(r.Context(), action, envelope)
	if err != nil {
		webLogger.Warn().Err(err).Str("action", action).Str("remote_addr", r.RemoteAddr).Msg("Request authentication failed")
		ws.writeOperationError(w, nil, err)
		return "", nil, false
	}
	return signer, envelope.Body, true
}

func decodeStrict(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
