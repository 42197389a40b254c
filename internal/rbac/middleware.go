package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

const accessTokenParam = "access_token"

// Middleware wires the Authenticator into HTTP routes.
type Middleware struct {
	Authenticator *Authenticator
	Logger        *slog.Logger
}

// Require guards the wrapped handler with a (menu, action) check. The action is
// validated when routes are mounted, so an unknown one panics at startup.
func (m Middleware) Require(menuID string, action Action) func(http.Handler) http.Handler {
	if strings.TrimSpace(menuID) == "" {
		panic("rbac: require: empty menu id")
	}
	action, err := ParseAction(string(action))
	if err != nil {
		panic(fmt.Sprintf("rbac: require %s: %v", menuID, err))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := m.Authenticator.Authenticate(r.Context(), BearerToken(r), menuID, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Info("rbac request denied", slog.String("path", r.URL.Path), slog.String("result", err.Error()))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken extracts the token from the Authorization header, falling back to
// the access_token query parameter.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
}
