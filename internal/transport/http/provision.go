package http

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"okeanchat/internal/authz"
	"okeanchat/internal/domain"
	"okeanchat/internal/dto"
	"okeanchat/internal/httpx"
	obsmw "okeanchat/internal/observability/middleware"
)

// UserProvisioner creates the local profile row for an identity issued by
// the auth provider. *store.UserStore implements it.
type UserProvisioner interface {
	Ensure(ctx context.Context, usr *domain.User) error
}

// ProvisionUsers makes sure every authenticated caller has a users row.
// Each identity is written at most once per process.
func ProvisionUsers(users UserProvisioner) func(http.Handler) http.Handler {
	var seen sync.Map
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authz.IdentityFrom(r.Context())
			if !ok || users == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, done := seen.Load(id.Subject); !done {
				name := strings.TrimSpace(id.Name)
				if name == "" {
					name = id.Subject
				}
				err := users.Ensure(r.Context(), &domain.User{ID: id.Subject, UserName: name, Avatar: id.Avatar})
				if err != nil {
					obsmw.Logger(r.Context()).Error("provision user failed", "user_id", id.Subject, "error", err)
					httpx.WriteJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{
						Error:  "user store unavailable",
						Reason: domain.ReasonPersistence,
					})
					return
				}
				seen.Store(id.Subject, struct{}{})
			}
			next.ServeHTTP(w, r)
		})
	}
}
