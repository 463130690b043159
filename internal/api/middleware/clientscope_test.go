package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/auth"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/DATA-DOG/go-sqlmock"
)

var clientCols = []string{
	"id", "company_name", "contact_name", "email", "phone", "status", "plan_tier",
	"setup_fee", "monthly_fee", "billing_cycle", "next_billing_date", "notes",
	"created_at", "updated_at",
}

func scopeRequest(claims *auth.Claims) *http.Request {
	req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	if claims != nil {
		ctx := context.WithValue(req.Context(), apiContext.Claims, claims)
		req = req.WithContext(ctx)
	}
	return req
}

func TestClientScopeLoadsClient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM clients WHERE id = ?").
		WithArgs("cl_1").
		WillReturnRows(sqlmock.NewRows(clientCols).
			AddRow("cl_1", "Bakkerij Jansen", "P. Jansen", "p@jansen.nl", "", "active", "standard",
				"500", "250", "monthly", nil, "", 1700000000, 1700000000))

	mid := NewClientScopeMiddleware(repositories.NewClientRepository(db))

	var got *models.Client
	handler := mid.Handle(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(apiContext.Client).(*models.Client)
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, scopeRequest(&auth.Claims{UserID: "usr_1", ClientID: "cl_1", Role: auth.RoleClient}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got == nil || got.ID != "cl_1" {
		t.Fatalf("client in context = %+v, want cl_1", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClientScopeAdminPassesThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mid := NewClientScopeMiddleware(repositories.NewClientRepository(db))

	called := false
	handler := mid.Handle(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := r.Context().Value(apiContext.Client).(*models.Client); ok {
			t.Error("admin request should carry no client in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, scopeRequest(&auth.Claims{UserID: "usr_adm", Role: auth.RoleAdmin}))

	if !called {
		t.Fatal("handler was not called")
	}
	// No queries: admins are never resolved against the clients table.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

func TestClientScopeRejectsChurnedClient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM clients WHERE id = ?").
		WithArgs("cl_gone").
		WillReturnRows(sqlmock.NewRows(clientCols).
			AddRow("cl_gone", "Failliet BV", "X", "x@failliet.nl", "", "churned", "standard",
				"0", "0", "monthly", nil, "", 1700000000, 1700000000))

	mid := NewClientScopeMiddleware(repositories.NewClientRepository(db))
	handler := mid.Handle(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, scopeRequest(&auth.Claims{UserID: "usr_2", ClientID: "cl_gone", Role: auth.RoleClient}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestClientScopeRejectsUnboundToken(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mid := NewClientScopeMiddleware(repositories.NewClientRepository(db))
	handler := mid.Handle(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, scopeRequest(&auth.Claims{UserID: "usr_3", Role: auth.RoleClient}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestClientScopeRequiresClaims(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mid := NewClientScopeMiddleware(repositories.NewClientRepository(db))
	handler := mid.Handle(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, scopeRequest(nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
