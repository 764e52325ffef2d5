package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/omnissiah/prodledger/internal/model"
)

// Principal headers set by the upstream auth boundary.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   model.Role
}

type principalKey struct{}

func principalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// requireRole rejects requests without a principal (401) or with another
// role (403).
func requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
			if err != nil || id <= 0 {
				writeError(w, http.StatusUnauthorized, "missing or invalid "+headerUserID)
				return
			}
			got := model.Role(r.Header.Get(headerUserRole))
			if got != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, Principal{UserID: id, Role: got})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
