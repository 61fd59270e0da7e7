package authz

import (
	"context"
	"fmt"

	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

// Assertion helpers for finer-grained checks inside already-authorized
// handlers. Each evaluates a single gate against the resolved Access and
// returns a *DeniedError on failure, never silently passing. Failed
// assertions are written to the audit trail before the error propagates;
// successful ones are not re-recorded, since the request's admitting
// decision already covers them.

// AssertLevel fails unless the caller's highest authority level reaches
// minLevel. Action names the check in the audit trail.
func (e *Engine) AssertLevel(ctx context.Context, acc *Access, minLevel int, action string) error {
	if MeetsLevel(acc.Grants, minLevel) {
		return nil
	}
	e.metrics.GateFailuresTotal.WithLabelValues("level").Inc()
	return e.assertDenied(ctx, acc,
		Requirement{Action: action, MinLevel: minLevel},
		audit.ReasonInsufficientLevel,
		fmt.Sprintf("level %d below required %d", acc.Level(), minLevel))
}

// AssertPermission fails unless the caller holds the permission or the
// wildcard.
func (e *Engine) AssertPermission(ctx context.Context, acc *Access, perm roles.Permission, action string) error {
	if HoldsPermission(acc.Grants, perm) {
		return nil
	}
	e.metrics.GateFailuresTotal.WithLabelValues("permission").Inc()
	return e.assertDenied(ctx, acc,
		Requirement{Action: action, Permission: perm},
		audit.ReasonMissingPermission,
		fmt.Sprintf("permission %q not granted", perm))
}

// AssertScopedRole fails unless the caller holds the role within the scope.
func (e *Engine) AssertScopedRole(ctx context.Context, acc *Access, role string, scope ScopeRequirement, action string) error {
	if HoldsScopedRole(e.catalog, acc.Assignments, role, &scope) {
		return nil
	}
	e.metrics.GateFailuresTotal.WithLabelValues("scoped_role").Inc()
	return e.assertDenied(ctx, acc,
		Requirement{Action: action, Role: role, Scope: &scope},
		audit.ReasonScopeMismatch,
		fmt.Sprintf("role %q not held within scope %q", role, scopeLabel(&scope)))
}

func (e *Engine) assertDenied(ctx context.Context, acc *Access, req Requirement, reason, detail string) error {
	rec := e.newRecord(e.clock(), requestMeta{requestID: observability.GetRequestID(ctx)}, req)
	rec.UserID = acc.Identity.UserID
	rec.OrganizationID = acc.Identity.OrganizationID
	rec.MemberID = acc.Member.ID
	rec.Roles = acc.Roles()
	rec.HighestLevel = acc.Level()
	rec.Decision = audit.DecisionDenied
	rec.Reason = reason
	e.writeRecord(ctx, rec)
	e.metrics.DecisionsTotal.WithLabelValues(string(audit.DecisionDenied), reason).Inc()
	return &DeniedError{Reason: reason, Detail: detail}
}
