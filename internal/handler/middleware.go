package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/practicehub-backend/internal/auth"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type ctxKey struct{}

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// ActorResolver turns a token's user id into the current Actor.
type ActorResolver interface {
	Authenticate(ctx context.Context, userID int64) (model.Actor, error)
}

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFrom returns the authenticated caller placed by Authenticate.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(model.Actor)
	return actor, ok
}

// Authenticate requires a valid bearer token and re-reads the user so role
// changes and deactivation apply immediately.
func Authenticate(tokens TokenParser, actors ActorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				WriteError(r.Context(), logg, w, appErrors.New(appErrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				WriteError(r.Context(), logg, w, appErrors.Wrap(appErrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			actor, err := actors.Authenticate(r.Context(), claims.UserID)
			if err != nil {
				WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithActor(r.Context(), actor)
			ctx = logg.WithFields(ctx, map[string]any{
				"user_id":    actor.ID,
				"actor_role": string(actor.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger seeds the request context logger and logs one line per request.
func RequestLogger(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logg.Info(logg.WithFields(ctx, map[string]any{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}), "request complete")
		})
	}
}
