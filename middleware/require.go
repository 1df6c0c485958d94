package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
)

// Require rejects requests whose identity does not satisfy req. It must run
// after Guard; a request without an identity is treated as unauthenticated.
func Require(req func(*http.Request) permission.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, authcore.ErrMalformedToken)
				return
			}
			if err := permission.Check(id.Subject(), req(r)); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin() func(http.Handler) http.Handler {
	return Require(func(*http.Request) permission.Requirement {
		return permission.RequireAdmin()
	})
}

func RequireCapability(c permission.Capability) func(http.Handler) http.Handler {
	return Require(func(*http.Request) permission.Requirement {
		return permission.RequireCapability(c)
	})
}

// RequireOwnerOrAdmin allows the resource owner returned by owner, or an
// admin. An empty owner id only admits admins.
func RequireOwnerOrAdmin(owner func(*http.Request) string) func(http.Handler) http.Handler {
	return Require(func(r *http.Request) permission.Requirement {
		return permission.OwnerOrAdmin(owner(r))
	})
}
