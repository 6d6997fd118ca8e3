package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/chat"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Chat        *chat.Service // Required
	Indexer     *rag.Indexer  // Required
	DB          Pinger        // Optional: nil degrades /ready to liveness
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateRPS     float64       // Token refill rate per IP (0 = default 1/sec)
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.Indexer == nil {
		return nil, errors.New("indexer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dh := &documentHandler{indexer: cfg.Indexer, logger: logger}
	ch := &chatHandler{chat: cfg.Chat, logger: logger}

	mux := http.NewServeMux()

	// Documents
	mux.HandleFunc("POST /api/documents/process", dh.process)

	// Chat
	mux.HandleFunc("POST /api/chat/start", ch.start)
	mux.HandleFunc("POST /api/chat/message", ch.message)
	mux.HandleFunc("GET /api/chat/history", ch.history)
	mux.HandleFunc("GET /api/chat/status", ch.status)

	// Rate limiter: per-IP token bucket
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(rps, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.DB))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
