package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/auth"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/metrics"
)

type principalKey struct{}

// PrincipalFrom returns the caller attached by the authentication
// middleware. The zero principal means anonymous.
func PrincipalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey{}).(domain.Principal)
	return p
}

// authenticate attaches the bearer token's principal to the request.
// Requests without a token continue anonymously; a bad token is refused.
func authenticate(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := auth.BearerToken(header)
			if !ok {
				writeError(w, r, errkind.Authorization.Wrap(domain.ErrInvalidToken))
				return
			}
			p, err := tokens.Validate(token)
			if err != nil {
				logger.Warn("rejected token from %s: %v", r.RemoteAddr, err)
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requirePrincipal refuses anonymous callers. Browsers are sent to the
// login page, everything else gets 401.
func requirePrincipal(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFrom(r.Context()).Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if loginURL != "" && strings.Contains(r.Header.Get("Accept"), "text/html") {
				http.Redirect(w, r, loginURL, http.StatusFound)
				return
			}
			writeError(w, r, errkind.Authorization.Wrap(domain.ErrUnauthenticated))
		})
	}
}

// requestLog writes one structured line per request and records metrics
// under the matched route pattern.
func requestLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveHTTP(route, strconv.Itoa(status), start)
			logger.Zap().Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("user", PrincipalFrom(r.Context()).Username),
			)
		})
	}
}
