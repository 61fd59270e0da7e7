package authz

import (
	"fmt"
	"net/http"

	"github.com/unioneyes/warden/pkg/audit"
)

// DeniedError is the outcome of every denied decision, from the assertion
// helpers as well as the engine. Reason is one of the audit reason codes;
// Detail is diagnostic text for logs and is never sent to clients.
type DeniedError struct {
	Reason string
	Detail string
}

func (e *DeniedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("authorization denied: %s", e.Reason)
	}
	return fmt.Sprintf("authorization denied: %s: %s", e.Reason, e.Detail)
}

// StatusCode maps the denial to its HTTP status: 401 when no identity was
// established, 403 for everything after authentication.
func (e *DeniedError) StatusCode() int {
	if e.Reason == audit.ReasonUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// Message returns the client-safe response text. Gate specifics (levels,
// permission names, scopes) stay in the audit trail; clients only learn the
// broad class of refusal.
func (e *DeniedError) Message() string {
	switch e.Reason {
	case audit.ReasonUnauthenticated:
		return "authentication required"
	case audit.ReasonMemberNotFound:
		return "member not found"
	default:
		return "forbidden"
	}
}

// InfrastructureError reports that a collaborator failed while a decision
// was being evaluated. It is deliberately distinct from a denial: the caller
// answers with a 5xx and the client may retry, instead of being told it
// lacks access it might well have.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("authorization infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// StatusCode is always 503.
func (e *InfrastructureError) StatusCode() int { return http.StatusServiceUnavailable }

// Message returns the client-safe response text.
func (e *InfrastructureError) Message() string {
	return "service temporarily unavailable, try again"
}
