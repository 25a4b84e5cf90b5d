// Package httpapi binds the KV service to its HTTP wire contract:
//
//	GET    /kv/{key}            read a value
//	PUT    /kv/{key}            write the raw request body as the value
//	DELETE /kv/{key}            delete a key (idempotent)
//	GET    /health              static liveness check
//	GET    /metrics             JSON counter snapshot
//	GET    /metrics/prometheus  Prometheus exposition (optional)
//
// Values are opaque bytes; inside the JSON envelope they travel base64
// encoded. Keys may contain path separators.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Ankit-Rajput1112/DECS-Project/kv"
	"github.com/Ankit-Rajput1112/DECS-Project/metrics"
	"github.com/Ankit-Rajput1112/DECS-Project/ratelimit"
	"github.com/Ankit-Rajput1112/DECS-Project/tracing"
)

// defaultMaxValueBytes bounds PUT bodies. The core imposes no value size
// limit; the transport does.
const defaultMaxValueBytes = 4 << 20

// response is the JSON envelope shared by every endpoint. Value is base64
// on the wire, keeping binary values JSON-safe.
type response struct {
	Status  string `json:"status"`
	Value   []byte `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Config carries the optional pieces of the handler chain.
type Config struct {
	// RateLimit, when set, gates every request through a token bucket.
	RateLimit *ratelimit.Limiter

	// Tracing, when set, wraps the chain in an OpenTelemetry span per
	// request.
	Tracing *tracing.Config

	// PromHandler, when set, is served at GET /metrics/prometheus.
	PromHandler http.Handler

	// MaxValueBytes caps PUT bodies. Zero means the default of 4 MiB.
	MaxValueBytes int64
}

type handler struct {
	svc           *kv.Service
	metrics       *metrics.Registry
	log           *zap.Logger
	maxValueBytes int64
}

// NewHandler assembles the route table and middleware chain. The outermost
// layer is panic recovery, then request-ID injection, tracing, rate
// limiting and request logging.
func NewHandler(svc *kv.Service, reg *metrics.Registry, log *zap.Logger, cfg Config) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{
		svc:           svc,
		metrics:       reg,
		log:           log,
		maxValueBytes: cfg.MaxValueBytes,
	}
	if h.maxValueBytes <= 0 {
		h.maxValueBytes = defaultMaxValueBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /kv/{key...}", h.read)
	mux.HandleFunc("PUT /kv/{key...}", h.write)
	mux.HandleFunc("DELETE /kv/{key...}", h.delete)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /metrics", h.snapshot)
	if cfg.PromHandler != nil {
		mux.Handle("GET /metrics/prometheus", cfg.PromHandler)
	}

	var chain http.Handler = mux
	chain = RequestLog(log)(chain)
	if cfg.RateLimit != nil {
		chain = RateLimit(cfg.RateLimit)(chain)
	}
	if cfg.Tracing != nil {
		chain = tracing.Middleware(cfg.Tracing)(chain)
	}
	chain = RequestID()(chain)
	chain = Recovery(log)(chain)
	return chain
}

func (h *handler) read(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "empty key"})
		return
	}

	value, err := h.svc.Read(r.Context(), key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		// Absence counts as an error only here, at the transport boundary.
		h.metrics.IncError()
		writeJSON(w, http.StatusNotFound, response{Status: "error", Error: "key not found"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, response{Status: "ok", Value: value})
	}
}

func (h *handler) write(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "empty key"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxValueBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, response{Status: "error", Error: "value too large"})
		return
	}

	if err := h.svc.Write(r.Context(), key, body); err != nil {
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, response{Status: "ok"})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "empty key"})
		return
	}

	if err := h.svc.Delete(r.Context(), key); err != nil {
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Message: "deleted"})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// metricsBody extends the counter snapshot with the cache's size observers.
type metricsBody struct {
	metrics.Snapshot
	CacheSize     int `json:"cache_size"`
	CacheCapacity int `json:"cache_capacity"`
}

func (h *handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	c := h.svc.Cache()
	writeJSON(w, http.StatusOK, metricsBody{
		Snapshot:      h.metrics.Snapshot(),
		CacheSize:     c.Len(),
		CacheCapacity: c.Capacity(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
