package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

var tracer = otel.Tracer("github.com/unioneyes/warden/pkg/authz")

// Config wires the collaborators the decision engine needs. The engine
// copies what it needs at construction and never mutates the Config, so one
// value can seed several engines and tests can share a base configuration.
type Config struct {
	// Identity authenticates incoming requests. Required.
	Identity identity.Provider

	// Membership resolves the caller's standing in the organization. Required.
	Membership membership.Resolver

	// Catalog is the role hierarchy consulted for levels, permissions, and
	// legacy names. Defaults to roles.DefaultCatalog().
	Catalog *roles.Catalog

	// Recorder receives exactly one record per decision. Defaults to a no-op.
	Recorder audit.Recorder

	// Logger receives operational errors: collaborator outages and audit
	// sink failures. Defaults to an info-level JSON logger on stdout.
	Logger *observability.Logger

	// Metrics receives decision counters and timings. Defaults to a fresh
	// private registry so engines constructed in tests do not collide.
	Metrics *observability.Metrics

	// OTel mirrors the decision metrics onto OpenTelemetry instruments for
	// deployments shipping OTLP. Optional.
	OTel *observability.OTelMetrics

	// Clock is the time source for record timestamps and elapsed
	// measurement. Defaults to time.Now.
	Clock func() time.Time
}

// Engine evaluates authorization decisions. Every protected operation runs
// through Authorize, which walks the pipeline: authenticate, resolve
// membership, aggregate grants, apply the requirement's gates, record the
// decision. The engine holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	identity   identity.Provider
	membership membership.Resolver
	catalog    *roles.Catalog
	recorder   audit.Recorder
	logger     *observability.Logger
	metrics    *observability.Metrics
	otel       *observability.OTelMetrics
	clock      func() time.Time
}

// New validates the configuration and constructs an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("authz: identity provider is required")
	}
	if cfg.Membership == nil {
		return nil, fmt.Errorf("authz: membership resolver is required")
	}

	e := &Engine{
		identity:   cfg.Identity,
		membership: cfg.Membership,
		catalog:    cfg.Catalog,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		otel:       cfg.OTel,
		clock:      cfg.Clock,
	}
	if e.catalog == nil {
		e.catalog = roles.DefaultCatalog()
	}
	if e.recorder == nil {
		e.recorder = audit.NopRecorder{}
	}
	if e.logger == nil {
		e.logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// Catalog returns the role catalog the engine consults.
func (e *Engine) Catalog() *roles.Catalog { return e.catalog }

// Requirement describes what a protected operation demands before it runs.
// The three gates compose: set any combination of MinLevel, Permission, and
// Role, and all of them must pass. A Requirement with none set admits any
// active member of the organization.
type Requirement struct {
	// Action names the operation in the audit trail, e.g.
	// "grievance:escalate". Empty records as "access".
	Action string

	// ResourceType and ResourceID identify what the action touches.
	ResourceType string
	ResourceID   string

	// MinLevel admits callers whose highest authority level reaches it.
	// Zero disables the gate.
	MinLevel int

	// Permission admits callers granted the permission or the wildcard.
	// Empty disables the gate.
	Permission roles.Permission

	// Role admits callers holding the role, constrained by Scope when set.
	// Legacy spellings are accepted. Empty disables the gate.
	Role string

	// Scope constrains the Role gate. Nil admits the role at any scope; it
	// has no effect when Role is empty.
	Scope *ScopeRequirement

	// Sensitive flags the decision for extended retention and review in the
	// audit trail.
	Sensitive bool
}

// requestMeta is the slice of request context that ends up in the audit
// record.
type requestMeta struct {
	requestID string
	ip        string
	userAgent string
	method    string
	path      string
}

func metaFromRequest(r *http.Request) requestMeta {
	return requestMeta{
		requestID: observability.GetRequestID(r.Context()),
		ip:        audit.ClientIP(r),
		userAgent: r.UserAgent(),
		method:    r.Method,
		path:      r.URL.Path,
	}
}

// Authorize runs the full decision pipeline for an HTTP request. On allow
// it returns the resolved Access for the protected operation; otherwise it
// returns *DeniedError or *InfrastructureError. Exactly one audit record is
// written before control returns, whatever the outcome.
func (e *Engine) Authorize(ctx context.Context, r *http.Request, req Requirement) (*Access, error) {
	start := e.clock()
	ctx, span := tracer.Start(ctx, "authz.Authorize", trace.WithAttributes(
		attribute.String("authz.action", actionName(req)),
	))
	defer span.End()

	rec := e.newRecord(start, metaFromRequest(r), req)

	ident, err := e.identity.Authenticate(r)
	if err != nil {
		if errors.Is(err, identity.ErrNoToken) || errors.Is(err, identity.ErrInvalidToken) {
			return nil, e.deny(ctx, span, rec, start, audit.ReasonUnauthenticated, err.Error())
		}
		// An unreachable identity provider is not "no user": fail closed
		// without inventing an anonymous caller.
		return nil, e.failClosed(ctx, span, rec, start, "authenticate", err)
	}

	return e.evaluate(ctx, span, *ident, rec, req, start)
}

// AuthorizeIdentity runs the pipeline for an already-authenticated identity.
// It serves callers outside the HTTP path, such as internal jobs acting on
// behalf of a user. A nil identity denies as unauthenticated.
func (e *Engine) AuthorizeIdentity(ctx context.Context, ident *identity.Identity, req Requirement) (*Access, error) {
	start := e.clock()
	ctx, span := tracer.Start(ctx, "authz.AuthorizeIdentity", trace.WithAttributes(
		attribute.String("authz.action", actionName(req)),
	))
	defer span.End()

	rec := e.newRecord(start, requestMeta{requestID: observability.GetRequestID(ctx)}, req)

	if ident == nil {
		return nil, e.deny(ctx, span, rec, start, audit.ReasonUnauthenticated, "no identity")
	}

	return e.evaluate(ctx, span, *ident, rec, req, start)
}

// evaluate is the post-authentication pipeline: membership, grants, gates.
func (e *Engine) evaluate(ctx context.Context, span trace.Span, ident identity.Identity, rec *audit.DecisionRecord, req Requirement, start time.Time) (*Access, error) {
	rec.UserID = ident.UserID
	rec.OrganizationID = ident.OrganizationID
	span.SetAttributes(
		attribute.String("authz.user_id", ident.UserID),
		attribute.String("authz.organization_id", ident.OrganizationID),
	)

	lookupStart := e.clock()
	ms, err := e.membership.Resolve(ctx, ident.UserID, ident.OrganizationID)
	lookupElapsed := e.clock().Sub(lookupStart)
	if err != nil {
		if errors.Is(err, membership.ErrNoMembership) {
			e.observeLookup(ctx, "not_found", lookupElapsed)
			return nil, e.deny(ctx, span, rec, start, audit.ReasonMemberNotFound, "no active membership in organization")
		}
		e.observeLookup(ctx, "error", lookupElapsed)
		return nil, e.failClosed(ctx, span, rec, start, "resolve membership", err)
	}
	e.observeLookup(ctx, "ok", lookupElapsed)

	rec.MemberID = ms.Member.ID
	grants := Aggregate(e.catalog, ms.Assignments)
	rec.Roles = grants.Roles()
	rec.HighestLevel = grants.HighestLevel

	// Gate order is fixed; the first failure names the denial reason.
	if req.MinLevel > 0 && !MeetsLevel(grants, req.MinLevel) {
		e.metrics.GateFailuresTotal.WithLabelValues("level").Inc()
		return nil, e.deny(ctx, span, rec, start, audit.ReasonInsufficientLevel,
			fmt.Sprintf("level %d below required %d", grants.HighestLevel, req.MinLevel))
	}
	if req.Permission != "" && !HoldsPermission(grants, req.Permission) {
		e.metrics.GateFailuresTotal.WithLabelValues("permission").Inc()
		return nil, e.deny(ctx, span, rec, start, audit.ReasonMissingPermission,
			fmt.Sprintf("permission %q not granted", req.Permission))
	}
	if req.Role != "" && !HoldsScopedRole(e.catalog, ms.Assignments, req.Role, req.Scope) {
		e.metrics.GateFailuresTotal.WithLabelValues("scoped_role").Inc()
		return nil, e.deny(ctx, span, rec, start, audit.ReasonScopeMismatch,
			fmt.Sprintf("role %q not held within scope %q", req.Role, scopeLabel(req.Scope)))
	}

	e.allow(ctx, span, rec, start, grantMethod(req, grants))
	return &Access{
		Identity:    ident,
		Member:      ms.Member,
		Assignments: ms.Assignments,
		Grants:      grants,
		catalog:     e.catalog,
	}, nil
}

// grantMethod names the most specific gate the requirement actually
// exercised, for the audit trail.
func grantMethod(req Requirement, g Grants) string {
	switch {
	case req.Role != "":
		return audit.ReasonScopedRole
	case req.Permission != "":
		if g.Wildcard() && !g.hasDirect(req.Permission) {
			return audit.ReasonWildcard
		}
		return audit.ReasonPermission
	case req.MinLevel > 0:
		return audit.ReasonAuthorityLevel
	default:
		return audit.ReasonMembership
	}
}

func (e *Engine) newRecord(start time.Time, meta requestMeta, req Requirement) *audit.DecisionRecord {
	return &audit.DecisionRecord{
		ID:            uuid.NewString(),
		Timestamp:     start,
		Action:        actionName(req),
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		RequiredLevel: req.MinLevel,
		Permission:    string(req.Permission),
		RequiredRole:  req.Role,
		Scope:         scopeLabel(req.Scope),
		Sensitive:     req.Sensitive,
		RequestID:     meta.requestID,
		IPAddress:     meta.ip,
		UserAgent:     meta.userAgent,
		Method:        meta.method,
		Path:          meta.path,
	}
}

func (e *Engine) deny(ctx context.Context, span trace.Span, rec *audit.DecisionRecord, start time.Time, reason, detail string) error {
	rec.Decision = audit.DecisionDenied
	rec.Reason = reason
	e.finish(ctx, span, rec, start)
	return &DeniedError{Reason: reason, Detail: detail}
}

func (e *Engine) failClosed(ctx context.Context, span trace.Span, rec *audit.DecisionRecord, start time.Time, op string, err error) error {
	rec.Decision = audit.DecisionDenied
	rec.Reason = audit.ReasonInfrastructureError
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	e.finish(ctx, span, rec, start)
	e.logger.WithError(err).WithField("op", op).Error("authorization infrastructure failure")
	return &InfrastructureError{Op: op, Err: err}
}

func (e *Engine) allow(ctx context.Context, span trace.Span, rec *audit.DecisionRecord, start time.Time, method string) {
	rec.Decision = audit.DecisionAllowed
	rec.Reason = method
	e.finish(ctx, span, rec, start)
}

// finish stamps the elapsed time, writes the audit record, and observes the
// decision metrics. It runs on every terminal path exactly once.
func (e *Engine) finish(ctx context.Context, span trace.Span, rec *audit.DecisionRecord, start time.Time) {
	elapsed := e.clock().Sub(start)
	rec.ElapsedMS = elapsed.Milliseconds()
	span.SetAttributes(
		attribute.String("authz.decision", string(rec.Decision)),
		attribute.String("authz.reason", rec.Reason),
	)
	e.writeRecord(ctx, rec)
	e.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision), rec.Reason).Inc()
	e.metrics.DecisionDuration.WithLabelValues(string(rec.Decision)).Observe(elapsed.Seconds())
	if e.otel != nil {
		e.otel.RecordDecision(ctx, string(rec.Decision), rec.Reason, elapsed)
	}
}

func (e *Engine) observeLookup(ctx context.Context, status string, elapsed time.Duration) {
	e.metrics.MembershipLookupsTotal.WithLabelValues(status).Inc()
	e.metrics.MembershipLookupDuration.Observe(elapsed.Seconds())
	if e.otel != nil {
		e.otel.RecordMembershipLookup(ctx, status, elapsed)
	}
}

// writeRecord persists the decision before control returns to the caller.
// The context is detached from cancellation so a client abort cannot tear
// down the write mid-flight. A recorder failure is reported to operators
// and never alters the decision that was already made.
func (e *Engine) writeRecord(ctx context.Context, rec *audit.DecisionRecord) {
	writeStart := e.clock()
	err := e.recorder.Record(context.WithoutCancel(ctx), rec)
	writeElapsed := e.clock().Sub(writeStart)
	e.metrics.AuditWriteDuration.WithLabelValues("recorder").Observe(writeElapsed.Seconds())
	if err != nil {
		e.metrics.AuditRecordsTotal.WithLabelValues("recorder", "error").Inc()
		e.metrics.AuditFailuresTotal.WithLabelValues("recorder").Inc()
		if e.otel != nil {
			e.otel.RecordAuditWrite(ctx, "recorder", "error", writeElapsed)
		}
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"decision_id": rec.ID,
			"decision":    string(rec.Decision),
			"reason":      rec.Reason,
		}).Error("failed to record authorization decision")
		return
	}
	e.metrics.AuditRecordsTotal.WithLabelValues("recorder", "ok").Inc()
	if e.otel != nil {
		e.otel.RecordAuditWrite(ctx, "recorder", "ok", writeElapsed)
	}
}

func actionName(req Requirement) string {
	if req.Action != "" {
		return req.Action
	}
	return "access"
}

func scopeLabel(s *ScopeRequirement) string {
	if s == nil {
		return ""
	}
	if s.Value == "" {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.Value
}
