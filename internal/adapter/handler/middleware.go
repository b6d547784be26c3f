package handler

import (
	"context"
	"net/http"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

type contextKey int

const (
	actorKey contextKey = iota
	roleKey
)

// ActorMiddleware resolves the caller's identity from the headers the
// upstream auth layer sets: X-User-ID for authenticated users,
// X-Session-ID for anonymous sessions, exactly one of the two.
// X-User-Role carries the role (default customer).
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		sessionID := r.Header.Get("X-Session-ID")
		if userID != "" && sessionID != "" {
			writeError(w, http.StatusBadRequest, "bad_request", "provide X-User-ID or X-Session-ID, not both")
			return
		}

		var actor domain.Actor
		switch {
		case userID != "":
			actor = domain.UserActor(userID)
		case sessionID != "":
			actor = domain.SessionActor(sessionID)
		}

		role := domain.RoleCustomer
		if v := r.Header.Get("X-User-Role"); v != "" {
			role = domain.Role(v)
			if !role.Valid() {
				writeError(w, http.StatusBadRequest, "bad_request", "unknown role")
				return
			}
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, roleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := r.Context().Value(actorKey).(domain.Actor)
	return actor
}

func roleFrom(r *http.Request) domain.Role {
	role, ok := r.Context().Value(roleKey).(domain.Role)
	if !ok {
		return domain.RoleCustomer
	}
	return role
}
