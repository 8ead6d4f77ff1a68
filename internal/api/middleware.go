package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/metrics"
	"github.com/fpang/brand-studio/internal/store"
)

// withOriginVerify rejects requests lacking the x-origin-verify header that
// CloudFront injects, blocking direct API Gateway access. An empty secret
// disables the check.
func withOriginVerify(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("x-origin-verify") != secret {
			log.Warn().Str("path", r.URL.Path).Msg("Blocked request: missing or invalid x-origin-verify header")
			httpError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withMetrics emits request latency and count per route.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		elapsed := time.Since(start)
		metrics.Request(r.Method, normalizeRoute(r.URL.Path), sr.statusCode, elapsed)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}

// normalizeRoute keeps the metric dimension low-cardinality.
func normalizeRoute(path string) string {
	if _, ok := routes[path]; ok {
		return path
	}
	return "other"
}

type principalKey struct{}

// principalFrom returns the caller attached by withAuth.
func principalFrom(ctx context.Context) *store.Principal {
	p, _ := ctx.Value(principalKey{}).(*store.Principal)
	return p
}

// withAuth resolves the bearer token to a principal. The resolver fails
// closed, so any error is a 401.
func withAuth(resolver *auth.Resolver, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := resolver.ResolveRequest(r)
		if err != nil {
			httpError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}
