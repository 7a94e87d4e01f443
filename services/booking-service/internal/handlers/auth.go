package handlers

import (
	"context"
	"net/http"

	"github.com/md-rashed-zaman/trimtrove/libs/auth"
	"github.com/md-rashed-zaman/trimtrove/libs/httpx"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/appointment"
)

type actorKey struct{}

// RequireAuth verifies the HS256 bearer token and stores the caller on the request context.
func RequireAuth(jwtSecret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actor := appointment.Actor{ID: claims.Sub, Role: appointment.Role(claims.Role)}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(roles ...appointment.Role) httpx.Middleware {
	allowed := map[appointment.Role]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithActor(ctx context.Context, actor appointment.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(appointment.Actor)
	return actor, ok && actor.ID != ""
}
