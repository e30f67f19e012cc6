package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/helmcode/pairprog-ai/pkg/diagnostics"
	"github.com/helmcode/pairprog-ai/pkg/metrics"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"go.uber.org/zap"
)

type DocumentsResponse struct {
	Documents []string `json:"documents"`
}

type DocumentResponse struct {
	URI      string          `json:"uri"`
	Findings []model.Finding `json:"findings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handlers expose the diagnostic store read-only, plus per-document clear.
type Handlers struct {
	store  *diagnostics.Store
	logger *zap.Logger
}

func NewHandlers(store *diagnostics.Store, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, logger: logger}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) ListDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DocumentsResponse{Documents: h.store.Documents()})
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "uri query parameter is required"})
		return
	}
	findings, ok := h.store.Get(uri)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not tracked: " + uri})
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{URI: uri, Findings: findings})
}

func (h *Handlers) ClearDocument(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "uri query parameter is required"})
		return
	}
	h.store.Clear(uri)
	h.logger.Info("findings cleared", zap.String("uri", uri))
	w.WriteHeader(http.StatusNoContent)
}

// NewRouter wires the diagnostics API. recorder may be nil, in which case
// /metrics is not served.
func NewRouter(store *diagnostics.Store, recorder *metrics.Recorder, logger *zap.Logger) http.Handler {
	h := NewHandlers(store, logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		requestLogger(h.logger),
		middleware.Timeout(60*time.Second),
	)

	r.Get("/healthz", h.Health)
	if recorder != nil {
		r.Method(http.MethodGet, "/metrics", recorder.Handler())
	}

	r.Route("/api/v1/diagnostics", func(r chi.Router) {
		r.Get("/", h.ListDocuments)
		r.Get("/document", h.GetDocument)
		r.Delete("/document", h.ClearDocument)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveListener(ctx, ln, handler, logger)
}

func serveListener(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("diagnostics API listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
