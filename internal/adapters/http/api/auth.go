package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/okian/sessiontrack/internal/domain/types"
)

const (
	headerRole   = "X-User-Role"
	headerUserID = "X-User-Id"
)

// Principal is the caller as resolved from identity headers.
type Principal struct {
	ID   string
	Role types.Role
}

type principalKey struct{}

// PrincipalFrom returns the principal stored by the role gate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// authorize resolves the caller and lets the request through when its role
// is in allowed. An empty allowed list admits any known role.
func (s *Server) authorize(next http.HandlerFunc, allowed ...types.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := Principal{ID: strings.TrimSpace(r.Header.Get(headerUserID)), Role: types.RoleBCBA}
		if s.authEnabled {
			role, ok := types.ParseRole(r.Header.Get(headerRole))
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, nil)
				return
			}
			if len(allowed) > 0 && !slices.Contains(allowed, role) {
				writeError(w, http.StatusForbidden, codeForbidden, nil)
				return
			}
			p.Role = role
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}
