package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/unioneyes/warden/pkg/authz"
	"github.com/unioneyes/warden/pkg/httputil"
	"github.com/unioneyes/warden/pkg/middleware"
	"github.com/unioneyes/warden/pkg/roles"
)

// me returns the caller's resolved access context. The guard has already
// authenticated the caller and resolved their membership; this handler
// only shapes the response.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	access := middleware.GetAccess(r)
	if access == nil {
		httputil.WriteInternalError(w, fmt.Errorf("access missing from request context"))
		return
	}

	resp := meResponse{
		Identity:     access.Identity,
		Member:       access.Member,
		Assignments:  access.Assignments,
		Roles:        access.Roles(),
		HighestLevel: access.Level(),
		Permissions:  access.Grants.Permissions(),
		Wildcard:     access.Grants.Wildcard(),
	}

	// The display profile is best effort. It never affects grants, so a
	// provider that cannot serve one does not fail the request.
	if profile, err := s.provider.Profile(r.Context(), access.Identity.UserID); err == nil {
		resp.Profile = profile
	}

	httputil.WriteSuccess(w, resp)
}

// listRoles returns the role catalog in ascending authority order.
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	includeAliases, err := httputil.ParseQueryBool(r, "include_aliases", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	catalog := s.engine.Catalog()
	resp := catalogResponse{
		Roles:       catalog.Definitions(),
		DefaultRole: catalog.DefaultRole(),
	}
	if includeAliases {
		resp.Aliases = catalog.Aliases()
	}

	httputil.WriteSuccess(w, resp)
}

// getRole returns one role definition. Legacy spellings resolve to their
// canonical role; identifiers outside the catalog are a 404, not a
// silent fallback to the default role.
func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	raw, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	catalog := s.engine.Catalog()
	id, known := catalog.Resolve(raw)
	if !known {
		httputil.WriteNotFoundError(w, "unknown role: "+raw)
		return
	}

	def, _ := catalog.Definition(id)
	httputil.WriteSuccess(w, def)
}

// accessCheck evaluates a requirement against the caller's own membership
// and reports the outcome as data. Each check runs the full decision
// pipeline, so it lands in the audit trail like any enforced decision.
func (s *Server) accessCheck(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r)
	if ident == nil {
		httputil.WriteInternalError(w, fmt.Errorf("identity missing from request context"))
		return
	}

	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Action, "action") {
		return
	}

	requirement := authz.Requirement{
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		MinLevel:     req.MinLevel,
		Permission:   roles.Permission(req.Permission),
		Role:         req.Role,
		Sensitive:    req.Sensitive,
	}
	if req.Scope != nil {
		if !httputil.RequireNonEmpty(w, req.Scope.Type, "scope.type") {
			return
		}
		sc := authz.Scope(roles.ScopeType(req.Scope.Type), req.Scope.Value)
		if req.Scope.DisallowGlobal {
			sc = sc.WithoutGlobal()
		}
		requirement.Scope = &sc
	}

	access, err := s.engine.AuthorizeIdentity(r.Context(), ident, requirement)
	if err != nil {
		var denied *authz.DeniedError
		if errors.As(err, &denied) {
			httputil.WriteSuccess(w, checkResponse{
				Allowed: false,
				Reason:  denied.Reason,
			})
			return
		}
		var infra *authz.InfrastructureError
		if errors.As(err, &infra) {
			httputil.WriteServiceUnavailable(w, infra.Message())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkResponse{
		Allowed:          true,
		HighestRoleLevel: access.Level(),
		MatchingRoles:    s.matchingRoles(access, requirement.Scope),
	})
}

// matchingRoles lists the canonical roles behind a grant. Without a scope
// the caller's full role set matches; with one, only the roles of
// assignments satisfying the scope.
func (s *Server) matchingRoles(access *authz.Access, scope *authz.ScopeRequirement) []string {
	if scope == nil {
		return access.Roles()
	}

	match := access.CheckScope(*scope)
	catalog := s.engine.Catalog()
	seen := make(map[string]bool, len(match.Matching))
	var out []string
	for _, a := range match.Matching {
		id := catalog.Normalize(a.RoleID)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
