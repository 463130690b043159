package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "github.com/AMvdBM19/monoliet-portal/internal/api/context"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/errors"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/auth"
	"github.com/julienschmidt/httprouter"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathParam(r *http.Request, name string) string {
	params, ok := r.Context().Value(apiContext.Params).(httprouter.Params)
	if !ok {
		return ""
	}
	return params.ByName(name)
}

func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(apiContext.Claims).(*auth.Claims)
	return claims
}

// scopeClientID pins a request to a client. Admins may address any
// client through requested (a path or query value, empty meaning all);
// client users always get their own ID, and asking for someone else's
// is rejected.
func scopeClientID(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	claims := requestClaims(r)
	if claims == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return "", false
	}
	if claims.Role == auth.RoleAdmin {
		return requested, true
	}
	if requested != "" && requested != claims.ClientID {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Access to another client is not allowed", nil)
		return "", false
	}
	return claims.ClientID, true
}
