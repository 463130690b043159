package middleware

import (
	"context"
	"net/http"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/auth"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
)

// ClientScopeMiddleware resolves the client record behind a client-role
// token and pins the request to it. Admin tokens pass through with no
// client in context; handlers treat that as portal-wide scope.
type ClientScopeMiddleware struct {
	clients *repositories.ClientRepository
}

func NewClientScopeMiddleware(clients *repositories.ClientRepository) *ClientScopeMiddleware {
	return &ClientScopeMiddleware{clients: clients}
}

func (m *ClientScopeMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		if claims.Role == auth.RoleAdmin {
			next(w, r)
			return
		}

		if claims.ClientID == "" {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not bound to a client", nil)
			return
		}

		client, err := m.clients.GetByID(claims.ClientID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load client", nil)
			return
		}
		if client == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Client not found", nil)
			return
		}
		if client.Status == models.ClientChurned {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Client account is closed", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Client, client)
		next(w, r.WithContext(ctx))
	}
}
