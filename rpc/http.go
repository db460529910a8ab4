package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/core/types"
	"nftstake/indexer"
	"nftstake/observability"
	"nftstake/observability/logging"
	telemetry "nftstake/observability/otel"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

var rpcTracer = telemetry.Tracer("rpc")

// Ledger is the part of the host ledger the server drives.
type Ledger interface {
	Execute(ctx context.Context, tx *types.Transaction) (*runtime.Receipt, error)
	Account(addr solana.PublicKey) (*types.Account, error)
	AccountsByOwner(owner solana.PublicKey) ([]types.KeyedAccount, error)
	Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (*runtime.Receipt, error)
	Now() int64
	Sequence() uint64
}

// EventStore answers historical event queries.
type EventStore interface {
	List(ctx context.Context, filter indexer.Filter) ([]indexer.EventRecord, error)
}

// EventStream delivers committed events as they happen.
type EventStream interface {
	Subscribe(name string, buffer int) (<-chan events.Event, func())
}

// ServerConfig bounds the HTTP server.
type ServerConfig struct {
	RequestsPerSecond float64
	Burst             int
	TrustProxyHeaders bool
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	EnableFaucet      bool
	FaucetLamports    uint64
}

type Server struct {
	ledger  Ledger
	events  EventStore
	stream  EventStream
	cfg     ServerConfig
	limiter *RateLimiter
	logger  *slog.Logger
	handler http.Handler
}

// NewServer wires the JSON-RPC endpoint, health and metrics routes and the
// event websocket. store and stream may be nil; the dependent methods then
// report the feature as unavailable.
func NewServer(ledger Ledger, store EventStore, stream EventStream, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		ledger:  ledger,
		events:  store,
		stream:  stream,
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.TrustProxyHeaders),
		logger:  logging.Component(logger, "rpc"),
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.With(s.limiter.Middleware).Post("/", s.handle)
	s.handler = otelhttp.NewHandler(r, "nftstake.rpc", otelhttp.WithSpanNameFormatter(telemetry.HTTPSpanName))
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on listener until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", "address", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sequence": s.ledger.Sequence(),
		"time":     s.ledger.Now(),
	})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"stake_sendTransaction": s.handleSendTransaction,
		"stake_getAccount":      s.handleGetAccount,
		"stake_getTokenAccount": s.handleGetTokenAccount,
		"stake_getGlobal":       s.handleGetGlobal,
		"stake_getPool":         s.handleGetPool,
		"stake_listPools":       s.handleListPools,
		"stake_listEvents":      s.handleListEvents,
		"stake_requestAirdrop":  s.handleRequestAirdrop,
		"stake_getSequence":     s.handleGetSequence,
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	started := time.Now()
	ctx, span := rpcTracer.Start(r.Context(), "rpc."+req.Method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(telemetry.RPCMethodKey.String(req.Method)))
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, r.WithContext(ctx), req)
	span.SetAttributes(semconv.HTTPResponseStatusCode(recorder.status))
	if recorder.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(recorder.status))
	}
	span.End()
	observability.ModuleMetrics().Observe("stake", req.Method, recorder.status, time.Since(started))
	if recorder.status >= http.StatusInternalServerError {
		s.logger.Error("rpc request failed",
			"method", req.Method,
			"status", recorder.status,
			"request_id", w.Header().Get(requestIDHeader))
	}
}
