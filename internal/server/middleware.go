package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/access"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
)

type contextKey string

const principalKey contextKey = "principal"

// principalFrom extracts the authenticated principal; the zero value means
// the request skipped authentication (public endpoints).
func principalFrom(ctx context.Context) access.Principal {
	p, _ := ctx.Value(principalKey).(access.Principal)
	return p
}

// chain applies logging and panic recovery around a handler.
func chain(adapter *errors.HTTPErrorAdapter, next http.Handler) http.Handler {
	return loggingMiddleware(panicRecoveryMiddleware(adapter, next))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.Info("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.HTTPStatus(wrapped.statusCode),
			slog.Duration("duration", time.Since(start)),
			logfields.RemoteAddr(r.RemoteAddr))
	})
}

func panicRecoveryMiddleware(adapter *errors.HTTPErrorAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("HTTP handler panic",
					slog.Any("panic", rec),
					logfields.Method(r.Method),
					logfields.Path(r.URL.Path))
				adapter.WriteErrorResponse(w, r, errors.InternalError("internal server error").
					WithContext("path", r.URL.Path).
					Build())
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// authenticator resolves bearer tokens against the static registry.
type authenticator struct {
	tokens []tokenEntry
}

type tokenEntry struct {
	token     string
	principal access.Principal
}

func newAuthenticator(cfg config.APIConfig) (*authenticator, error) {
	a := &authenticator{}
	for _, t := range cfg.Tokens {
		role, err := access.ParseRole(t.Role)
		if err != nil {
			return nil, err
		}
		a.tokens = append(a.tokens, tokenEntry{
			token:     t.Token,
			principal: access.Principal{Role: role, Projects: t.Projects},
		})
	}
	return a, nil
}

// lookup compares against every entry so timing does not reveal which token
// prefix matched.
func (a *authenticator) lookup(token string) (access.Principal, bool) {
	var found access.Principal
	ok := false
	for _, e := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(e.token), []byte(token)) == 1 {
			found = e.principal
			ok = true
		}
	}
	return found, ok
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// authenticate rejects requests without a registered bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.adapter.WriteErrorResponse(w, r, errors.AuthError("missing bearer token").Build())
			return
		}
		principal, ok := s.auth.lookup(token)
		if !ok {
			s.adapter.WriteErrorResponse(w, r, errors.AuthError("invalid bearer token").Build())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
	})
}

// authorize requires a capability and, for project routes, scope coverage.
func (s *Server) authorize(capability access.Capability, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := principalFrom(r.Context())
		if !principal.Can(capability) {
			s.adapter.WriteErrorResponse(w, r, errors.ForbiddenError("insufficient role").
				Warning().
				WithContext("capability", string(capability)).
				Build())
			return
		}
		if id := r.PathValue("id"); id != "" && !principal.AllowsProject(id) {
			s.adapter.WriteErrorResponse(w, r, errors.ForbiddenError("project not in token scope").
				Warning().
				WithContext("project", id).
				Build())
			return
		}
		next(w, r)
	})
}
