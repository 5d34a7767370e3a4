package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/archvault/archvault/internal/shared"
)

// RoleLoader resolves the current role set for a user.
type RoleLoader interface {
	Get(ctx context.Context, userID uuid.UUID) ([]Role, error)
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Roles     RoleLoader
	Logger    *slog.Logger
	LoginPath string
	HomePath  string
}

// Resolve attaches the caller's Identity to the request context when the
// session carries a signed-in user. A role fetch failure is logged and
// degrades to the implicit viewer role; it never blocks the request.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := uuid.Parse(sess.User())
		if err != nil {
			m.logger().Warn("resolve identity: bad session user id", slog.String("value", sess.User()))
			next.ServeHTTP(w, r)
			return
		}
		roles, err := m.Roles.Get(r.Context(), userID)
		if err != nil {
			m.logger().Error("resolve identity: role fetch failed", slog.Any("error", err))
			roles = nil
		}
		if len(roles) == 0 {
			// Zero stored assignments (or a failed fetch) means the
			// implicit default role, never an empty grant.
			roles = []Role{RoleViewer}
		}
		ctx := ContextWithIdentity(r.Context(), Identity{UserID: userID, Roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests with 401, echoing the requested
// path so the client can return here after sign-in.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			shared.WriteJSON(w, http.StatusUnauthorized, shared.ErrorBody{
				Error:    shared.UserSafeMessage(shared.ErrUnauthenticated),
				Redirect: m.loginPath(),
				Next:     r.URL.RequestURI(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route on holding one exact role.
func (m Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return m.guard(func(id Identity) Verdict {
		return PageGuard(GuardRequest{Authenticated: true, Roles: id.Roles, RequiredRole: role})
	})
}

// RequireDomain gates a route on domain access.
func (m Middleware) RequireDomain(domain Domain) func(http.Handler) http.Handler {
	return m.guard(func(id Identity) Verdict {
		return PageGuard(GuardRequest{Authenticated: true, Roles: id.Roles, RequiredDomain: domain})
	})
}

// RequireManageUsers gates the user-management surface.
func (m Middleware) RequireManageUsers(next http.Handler) http.Handler {
	return m.guard(func(id Identity) Verdict {
		if id.Aggregate().CanManageUsers {
			return VerdictAllow
		}
		return VerdictDenied
	})(next)
}

func (m Middleware) guard(decide func(Identity) Verdict) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				shared.WriteJSON(w, http.StatusUnauthorized, shared.ErrorBody{
					Error:    shared.UserSafeMessage(shared.ErrUnauthenticated),
					Redirect: m.loginPath(),
					Next:     r.URL.RequestURI(),
				})
				return
			}
			switch decide(id) {
			case VerdictAllow:
				next.ServeHTTP(w, r)
			default:
				shared.WriteJSON(w, http.StatusForbidden, shared.ErrorBody{
					Error:    shared.UserSafeMessage(shared.ErrForbidden),
					Redirect: m.homePath(),
				})
			}
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Middleware) loginPath() string {
	if m.LoginPath != "" {
		return m.LoginPath
	}
	return "/auth"
}

func (m Middleware) homePath() string {
	if m.HomePath != "" {
		return m.HomePath
	}
	return "/"
}
