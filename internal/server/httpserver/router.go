package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/tlsdir/internal/telemetry/logger"
	"github.com/yndnr/tlsdir/internal/telemetry/metric"
)

// RouterConfig holds configuration for the file-serving router.
type RouterConfig struct {
	// Files serves every accepted request.
	Files http.Handler

	// Logger for access and panic logs.
	Logger logger.Logger

	// Metrics records per-request metrics when set.
	Metrics *metric.Registry

	// AccessLog enables one log line per request.
	AccessLog bool

	// RateLimit is the per-client request rate (requests/second, 0 = off).
	RateLimit float64

	// RateBurst is the per-client burst size.
	RateBurst int
}

// NewRouter wraps the file handler with the middleware chain.
//
// Order: RequestID -> AccessLog -> Metrics -> Recover -> RateLimit -> Methods -> Files
//
// Recover sits inside AccessLog and Metrics so a recovered panic is logged
// and counted as a 500.
func NewRouter(cfg *RouterConfig) http.Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}

	mws := []Middleware{RequestID(l)}
	if cfg.AccessLog {
		mws = append(mws, AccessLog(l))
	}
	if cfg.Metrics != nil {
		mws = append(mws, Metrics(cfg.Metrics))
	}
	mws = append(mws, Recover(l))
	if cfg.RateLimit > 0 {
		rl := RateLimitConfig{Rate: cfg.RateLimit, Burst: cfg.RateBurst}
		if cfg.Metrics != nil {
			rl.OnLimit = cfg.Metrics.IncRateLimited
		}
		mws = append(mws, RateLimit(rl))
	}
	mws = append(mws, Methods(http.MethodGet, http.MethodHead))

	return Chain(cfg.Files, mws...)
}

// NewMetricsRouter serves /metrics and health probes for the metrics
// listener.
func NewMetricsRouter(reg *metric.Registry, l logger.Logger) http.Handler {
	if l == nil {
		l = logger.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.HandlerWithLog(l))
	mux.HandleFunc("GET /healthz", handleHealth)
	return Chain(mux, Recover(l))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
