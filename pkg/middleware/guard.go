package middleware

import (
	"errors"
	"net/http"

	"github.com/unioneyes/warden/pkg/authz"
	"github.com/unioneyes/warden/pkg/contextkeys"
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

// Guard wraps the decision engine as HTTP middleware. One Guard serves the
// whole route table; each protected route states its own Requirement.
type Guard struct {
	engine   *authz.Engine
	identity identity.Provider
	logger   *observability.Logger
}

// NewGuard creates a new route guard
func NewGuard(engine *authz.Engine, provider identity.Provider, logger *observability.Logger) *Guard {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Guard{
		engine:   engine,
		identity: provider,
		logger:   logger,
	}
}

// Protect enforces the requirement before the handler runs. On allow the
// resolved Access and Identity ride the request context; on deny or failure
// the engine has already recorded the decision and the client gets the
// mapped status with a non-revealing body.
func (g *Guard) Protect(req authz.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := g.engine.Authorize(r.Context(), r, req)
			if err != nil {
				g.writeAuthError(w, r, err)
				return
			}

			ctx := contextkeys.WithAccess(r.Context(), access)
			ctx = contextkeys.WithIdentity(ctx, &access.Identity)
			ctx = observability.WithUserID(ctx, access.Identity.UserID)
			ctx = observability.WithOrganizationID(ctx, access.Identity.OrganizationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember admits any active member of the caller's organization
func (g *Guard) RequireMember() func(http.Handler) http.Handler {
	return g.Protect(authz.Requirement{})
}

// RequireLevel admits callers whose highest authority level reaches minLevel
func (g *Guard) RequireLevel(minLevel int) func(http.Handler) http.Handler {
	return g.Protect(authz.Requirement{MinLevel: minLevel})
}

// RequirePermission admits callers granted the permission or the wildcard
func (g *Guard) RequirePermission(perm roles.Permission) func(http.Handler) http.Handler {
	return g.Protect(authz.Requirement{Permission: perm})
}

// RequireScopedRole admits callers holding the role within the scope. A nil
// scope admits the role at any scope.
func (g *Guard) RequireScopedRole(role string, scope *authz.ScopeRequirement) func(http.Handler) http.Handler {
	return g.Protect(authz.Requirement{Role: role, Scope: scope})
}

// RequireAuth authenticates the caller without consulting membership or
// recording a decision. It serves display-only endpoints such as the
// caller's own profile, where identity is shown but nothing is authorized.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := g.identity.Authenticate(r)
		if err != nil {
			if errors.Is(err, identity.ErrNoToken) || errors.Is(err, identity.ErrInvalidToken) {
				unauthorizedResponse(w, "authentication required")
				return
			}
			g.logger.WithError(err).Error("identity provider failure")
			unavailableResponse(w)
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), ident)
		ctx = observability.WithUserID(ctx, ident.UserID)
		ctx = observability.WithOrganizationID(ctx, ident.OrganizationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeAuthError maps the engine's typed errors onto HTTP responses. Denials
// carry only the broad class of refusal; infrastructure failures answer 503
// so clients retry instead of treating an outage as lost access.
func (g *Guard) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *authz.DeniedError
	if errors.As(err, &denied) {
		writeJSONError(w, denied.StatusCode(), denied.Message())
		return
	}

	var infra *authz.InfrastructureError
	if errors.As(err, &infra) {
		writeJSONError(w, infra.StatusCode(), infra.Message())
		return
	}

	g.logger.WithError(err).WithField("path", r.URL.Path).Error("unexpected authorization error")
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}

// GetAccess extracts the authorization result from a protected request.
// It returns nil when Protect did not run.
func GetAccess(r *http.Request) *authz.Access {
	v := r.Context().Value(contextkeys.AccessKey)
	if v == nil {
		return nil
	}
	access, ok := v.(*authz.Access)
	if !ok {
		return nil
	}
	return access
}

// GetIdentity extracts the authenticated identity from a request. It returns
// nil when neither Protect nor RequireAuth ran.
func GetIdentity(r *http.Request) *identity.Identity {
	v := r.Context().Value(contextkeys.IdentityKey)
	if v == nil {
		return nil
	}
	ident, ok := v.(*identity.Identity)
	if !ok {
		return nil
	}
	return ident
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func unavailableResponse(w http.ResponseWriter) {
	writeJSONError(w, http.StatusServiceUnavailable, "service temporarily unavailable, try again")
}
