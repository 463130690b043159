package api

import (
	"context"
	"net/http"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/api/handlers"
	"github.com/AMvdBM19/monoliet-portal/internal/api/middleware"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/auth"
	"github.com/julienschmidt/httprouter"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	ClientHandler     *handlers.ClientHandler
	WorkflowHandler   *handlers.WorkflowHandler
	ExecutionHandler  *handlers.ExecutionHandler
	InvoiceHandler    *handlers.InvoiceHandler
	TicketHandler     *handlers.TicketHandler
	CredentialHandler *handlers.CredentialHandler
	ChannelHandler    *handlers.ChannelHandler
	DashboardHandler  *handlers.DashboardHandler
	AuditHandler      *handlers.AuditHandler
	JobsHandler       *handlers.JobsHandler
	HealthHandler     *handlers.HealthHandler

	AuthMiddleware  *middleware.AuthMiddleware
	ScopeMiddleware *middleware.ClientScopeMiddleware
	RateLimiter     *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))

	rl := deps.RateLimiter
	authMid := deps.AuthMiddleware.Handle
	scopeMid := deps.ScopeMiddleware.Handle

	// Login is limited by source address; everything behind auth is
	// limited per user.
	router.POST("/api/v1/auth/login",
		chain(deps.AuthHandler.Login, rl.Limit("login")))
	router.POST("/api/v1/auth/refresh",
		chain(deps.AuthHandler.Refresh, rl.Limit("login")))

	read := func(handler http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
		mws := append([]func(http.HandlerFunc) http.HandlerFunc{authMid, rl.Limit("api_read"), scopeMid}, extra...)
		return chain(handler, mws...)
	}
	write := func(handler http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
		mws := append([]func(http.HandlerFunc) http.HandlerFunc{authMid, rl.Limit("api_write"), scopeMid}, extra...)
		return chain(handler, mws...)
	}
	admin := requireRole(auth.RoleAdmin)

	// Clients. /clients/me is served through the :client_id route.
	router.POST("/api/v1/clients", write(deps.ClientHandler.Create, admin))
	router.GET("/api/v1/clients", read(deps.ClientHandler.List, admin))
	router.GET("/api/v1/clients/:client_id", read(deps.ClientHandler.Get))
	router.PATCH("/api/v1/clients/:client_id", write(deps.ClientHandler.Update, admin))
	router.PATCH("/api/v1/clients/:client_id/status", write(deps.ClientHandler.SetStatus, admin))

	// Workflows
	router.POST("/api/v1/workflows", write(deps.WorkflowHandler.Create, admin))
	router.GET("/api/v1/workflows", read(deps.WorkflowHandler.List))
	router.GET("/api/v1/workflows/:workflow_id", read(deps.WorkflowHandler.Get))
	router.PATCH("/api/v1/workflows/:workflow_id/activate", write(deps.WorkflowHandler.Activate, admin))
	router.PATCH("/api/v1/workflows/:workflow_id/deactivate", write(deps.WorkflowHandler.Deactivate, admin))

	// Executions
	router.GET("/api/v1/executions", read(deps.ExecutionHandler.List))
	router.GET("/api/v1/executions/stats", read(deps.ExecutionHandler.Stats))

	// Invoices
	router.POST("/api/v1/invoices", write(deps.InvoiceHandler.Create, admin))
	router.GET("/api/v1/invoices", read(deps.InvoiceHandler.List))
	router.GET("/api/v1/invoices/:invoice_id", read(deps.InvoiceHandler.Get))
	router.GET("/api/v1/invoices/:invoice_id/qr", read(deps.InvoiceHandler.QR))
	router.POST("/api/v1/invoices/:invoice_id/pay", write(deps.InvoiceHandler.Pay, admin))

	// Support tickets
	router.POST("/api/v1/support-tickets", write(deps.TicketHandler.Create))
	router.GET("/api/v1/support-tickets", read(deps.TicketHandler.List))
	router.GET("/api/v1/support-tickets/:ticket_id", read(deps.TicketHandler.Get))
	router.PATCH("/api/v1/support-tickets/:ticket_id/status", write(deps.TicketHandler.SetStatus))

	// Engine credentials
	router.POST("/api/v1/clients/:client_id/credentials", write(deps.CredentialHandler.Create, admin))
	router.GET("/api/v1/clients/:client_id/credentials", read(deps.CredentialHandler.List, admin))
	router.POST("/api/v1/credentials/:credential_id/verify", write(deps.CredentialHandler.Verify, admin))
	router.DELETE("/api/v1/credentials/:credential_id", write(deps.CredentialHandler.Delete, admin))

	// Notification channels
	router.POST("/api/v1/channels", write(deps.ChannelHandler.Create, admin))
	router.GET("/api/v1/channels", read(deps.ChannelHandler.List, admin))
	router.PATCH("/api/v1/channels/:channel_id/status", write(deps.ChannelHandler.SetStatus, admin))
	router.DELETE("/api/v1/channels/:channel_id", write(deps.ChannelHandler.Delete, admin))

	// Dashboard
	router.GET("/api/v1/dashboard", read(deps.DashboardHandler.Get))

	// Audit trail
	router.GET("/api/v1/audit", read(deps.AuditHandler.ListRecent, admin))
	router.GET("/api/v1/audit/:entity_type/:entity_id", read(deps.AuditHandler.ListByEntity, admin))

	// Job triggers
	router.POST("/api/v1/jobs/:job_name", write(deps.JobsHandler.Run, admin))

	return router
}

// chain applies middlewares outermost first, so requests pass through
// them in the order given.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts to httprouter.Handle and moves path params into the
// request context so handlers keep plain http.HandlerFunc signatures.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
