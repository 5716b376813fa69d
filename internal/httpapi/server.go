// Package httpapi implements ClawRouter's HTTP surface (C9): the
// chat-completions endpoint, the model/alias listing, health, and
// stats endpoints, wired together with github.com/go-chi/chi/v5 the way
// the teacher wired its gateway handlers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clawrouter/clawrouter/internal/audit"
	"github.com/clawrouter/clawrouter/internal/balance"
	"github.com/clawrouter/clawrouter/internal/catalog"
	"github.com/clawrouter/clawrouter/internal/dedup"
	"github.com/clawrouter/clawrouter/internal/dispatcher"
	"github.com/clawrouter/clawrouter/internal/payment"
	"github.com/clawrouter/clawrouter/internal/pinstore"
	"github.com/clawrouter/clawrouter/internal/router"
	"github.com/clawrouter/clawrouter/internal/stats"
)

// Deps is every long-lived component the HTTP surface calls into. All
// fields are created once at startup (internal/proxy.Start) and torn
// down together at shutdown.
type Deps struct {
	Catalog    *catalog.Catalog
	Router     *router.Router
	Pins       *pinstore.Store
	Dedup      *dedup.Cache
	Backend    payment.Backend
	Dispatcher *dispatcher.Dispatcher
	Stats      *stats.Registry
	Audit      audit.Sink
	Balance    *balance.Monitor // nil when not running in wallet mode or no RPC endpoint configured
	// WalletAddress is the public address paying for upstream calls in
	// wallet mode, empty in claw.credit mode (spec.md §4.9's /health
	// contract always includes the field, just possibly blank).
	WalletAddress string
	Logger        zerolog.Logger
}

// NewRouter builds the full chi.Router for deps.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(130 * time.Second))
	r.Use(corsMiddleware)

	h := &handler{deps: deps}

	r.Post("/v1/chat/completions", h.chatCompletions)
	r.Get("/v1/models", h.listModels)
	r.Get("/health", h.health)
	r.Get("/stats", h.stats)

	r.NotFound(notFound)

	return r
}

type ctxKey string

const requestIDKey ctxKey = "clawrouter-request-id"

// requestIDMiddleware stamps every request with a uuid, mirroring the
// teacher's request-id middleware but using google/uuid instead of a
// hand-rolled generator.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := setRequestID(req.Context(), id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func loggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			log.Info().
				Str("request_id", requestIDFrom(req.Context())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// corsMiddleware allows any origin to call the proxy, adapted from the
// teacher's CORSMiddleware. ClawRouter has no multi-tenant auth
// boundary to protect (spec.md Non-goals), so this stays permissive
// rather than gaining an allowlist.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
