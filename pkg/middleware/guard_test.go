package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/authz"
	"github.com/unioneyes/warden/pkg/contextkeys"
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

type memberStore struct {
	memberships map[string]*membership.Membership
	err         error
}

func (s *memberStore) Resolve(ctx context.Context, userID, organizationID string) (*membership.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	ms, ok := s.memberships[userID+"/"+organizationID]
	if !ok {
		return nil, membership.ErrNoMembership
	}
	return ms, nil
}

type countingRecorder struct {
	mu      sync.Mutex
	records []*audit.DecisionRecord
}

func (c *countingRecorder) Record(ctx context.Context, rec *audit.DecisionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *countingRecorder) Close() error { return nil }

func (c *countingRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type outageProvider struct{}

func (outageProvider) Authenticate(*http.Request) (*identity.Identity, error) {
	return nil, errors.New("issuer unreachable")
}

func (outageProvider) Profile(context.Context, string) (*identity.Profile, error) {
	return nil, identity.ErrProfileNotFound
}

func stewardMembership(scopeType roles.ScopeType, scopeValue string) *membership.Membership {
	return &membership.Membership{
		Member: membership.Member{
			ID:             "mem-1",
			UserID:         "user-1",
			OrganizationID: "org-1",
			DisplayName:    "Rosa Diaz",
			Status:         "active",
			JoinedAt:       time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		Assignments: []membership.RoleAssignment{{
			ID:             "asg-1",
			MemberID:       "mem-1",
			OrganizationID: "org-1",
			RoleID:         roles.RoleSteward,
			ScopeType:      scopeType,
			ScopeValue:     scopeValue,
			IsActive:       true,
			GrantedAt:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		}},
	}
}

func testGuard(t *testing.T, resolver membership.Resolver, recorder audit.Recorder) *Guard {
	t.Helper()
	provider := identity.NewStaticProvider()
	provider.Register("steward-token", identity.Identity{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Email:          "rosa@local27.example",
		Name:           "Rosa Diaz",
	})

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	engine, err := authz.New(authz.Config{
		Identity:   provider,
		Membership: resolver,
		Recorder:   recorder,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return NewGuard(engine, provider, logger)
}

func stewardGuard(t *testing.T) *Guard {
	t.Helper()
	return testGuard(t, &memberStore{memberships: map[string]*membership.Membership{
		"user-1/org-1": stewardMembership(roles.ScopeWorksite, "plant-a"),
	}}, nil)
}

func authedRequest(path string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer steward-token")
	return req
}

func TestNewGuard(t *testing.T) {
	guard := stewardGuard(t)
	if guard == nil {
		t.Fatal("expected non-nil guard")
	}

	t.Run("defaults nil logger", func(t *testing.T) {
		provider := identity.NewStaticProvider()
		engine, err := authz.New(authz.Config{
			Identity:   provider,
			Membership: &memberStore{},
		})
		if err != nil {
			t.Fatalf("failed to build engine: %v", err)
		}
		g := NewGuard(engine, provider, nil)
		if g.logger == nil {
			t.Error("expected logger to be defaulted")
		}
	})
}

func TestProtect(t *testing.T) {
	t.Run("allows authorized request and stores access in context", func(t *testing.T) {
		guard := stewardGuard(t)
		handlerCalled := false
		handler := guard.Protect(authz.Requirement{
			Action:     "grievance:read",
			Permission: roles.PermissionGrievanceRead,
		})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true

			access := GetAccess(r)
			if access == nil {
				t.Fatal("expected access in request context")
			}
			if access.Member.ID != "mem-1" {
				t.Errorf("expected member mem-1, got %s", access.Member.ID)
			}

			ident := GetIdentity(r)
			if ident == nil {
				t.Fatal("expected identity in request context")
			}
			if ident.UserID != "user-1" {
				t.Errorf("expected user-1, got %s", ident.UserID)
			}

			if got := observability.GetUserID(r.Context()); got != "user-1" {
				t.Errorf("expected user id in log context, got %q", got)
			}
			if got := observability.GetOrganizationID(r.Context()); got != "org-1" {
				t.Errorf("expected organization id in log context, got %q", got)
			}
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/grievances"))

		if !handlerCalled {
			t.Error("handler should have been called")
		}
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects request without token", func(t *testing.T) {
		guard := stewardGuard(t)
		handler := guard.Protect(authz.Requirement{Action: "grievance:read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/grievances", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"authentication required"}` {
			t.Errorf("unexpected body: %s", body)
		}
		contentType := w.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}
	})

	t.Run("rejects request with unknown token", func(t *testing.T) {
		guard := stewardGuard(t)
		handler := guard.Protect(authz.Requirement{Action: "grievance:read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/v1/grievances", nil)
		req.Header.Set("Authorization", "Bearer forged-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"authentication required"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("rejects authenticated non-member with member not found", func(t *testing.T) {
		guard := testGuard(t, &memberStore{}, nil)
		handler := guard.Protect(authz.Requirement{Action: "grievance:read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/grievances"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"member not found"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("rejects member failing a gate with forbidden", func(t *testing.T) {
		guard := stewardGuard(t)
		handler := guard.Protect(authz.Requirement{
			Action:   "audit:search",
			MinLevel: 80,
		})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/audit"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"forbidden"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("reports membership outage as service unavailable", func(t *testing.T) {
		guard := testGuard(t, &memberStore{err: errors.New("pg: connection refused")}, nil)
		handler := guard.Protect(authz.Requirement{Action: "grievance:read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/grievances"))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"service temporarily unavailable, try again"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("records a decision for every protected request", func(t *testing.T) {
		recorder := &countingRecorder{}
		guard := testGuard(t, &memberStore{memberships: map[string]*membership.Membership{
			"user-1/org-1": stewardMembership(roles.ScopeWorksite, "plant-a"),
		}}, recorder)
		handler := guard.Protect(authz.Requirement{Action: "grievance:read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("/api/v1/grievances"))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/grievances", nil))

		if got := recorder.count(); got != 2 {
			t.Errorf("expected 2 decision records, got %d", got)
		}
	})
}

func TestRequireMember(t *testing.T) {
	t.Run("allows active member without assignments", func(t *testing.T) {
		bare := stewardMembership(roles.ScopeWorksite, "plant-a")
		bare.Assignments = nil
		guard := testGuard(t, &memberStore{memberships: map[string]*membership.Membership{
			"user-1/org-1": bare,
		}}, nil)

		handlerCalled := false
		handler := guard.RequireMember()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/me"))

		if !handlerCalled {
			t.Error("handler should have been called")
		}
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects non-member", func(t *testing.T) {
		guard := testGuard(t, &memberStore{}, nil)
		handler := guard.RequireMember()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/me"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
	})
}

func TestRequireLevel(t *testing.T) {
	guard := stewardGuard(t)

	t.Run("allows member at the threshold", func(t *testing.T) {
		handler := guard.RequireLevel(50)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/grievances"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects member below the threshold", func(t *testing.T) {
		handler := guard.RequireLevel(60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/reports"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"forbidden"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})
}

func TestRequirePermission(t *testing.T) {
	guard := stewardGuard(t)

	t.Run("allows member holding the permission", func(t *testing.T) {
		handler := guard.RequirePermission(roles.PermissionGrievanceRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/grievances"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects member lacking the permission", func(t *testing.T) {
		handler := guard.RequirePermission(roles.PermissionRoleManage)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/roles"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
	})
}

func TestRequireScopedRole(t *testing.T) {
	t.Run("allows assignment in the matching scope", func(t *testing.T) {
		guard := stewardGuard(t)
		scope := authz.Scope(roles.ScopeWorksite, "plant-a")
		handler := guard.RequireScopedRole(roles.RoleSteward, &scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/worksites/plant-a/grievances"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects assignment in a different scope", func(t *testing.T) {
		guard := stewardGuard(t)
		scope := authz.Scope(roles.ScopeWorksite, "plant-b")
		handler := guard.RequireScopedRole(roles.RoleSteward, &scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/worksites/plant-b/grievances"))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"forbidden"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("global assignment satisfies any scope", func(t *testing.T) {
		guard := testGuard(t, &memberStore{memberships: map[string]*membership.Membership{
			"user-1/org-1": stewardMembership(roles.ScopeGlobal, ""),
		}}, nil)
		scope := authz.Scope(roles.ScopeWorksite, "plant-b")
		handler := guard.RequireScopedRole(roles.RoleSteward, &scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/worksites/plant-b/grievances"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("legacy role name matches through alias", func(t *testing.T) {
		ms := stewardMembership(roles.ScopeWorksite, "plant-a")
		ms.Assignments[0].RoleID = "shop_steward"
		guard := testGuard(t, &memberStore{memberships: map[string]*membership.Membership{
			"user-1/org-1": ms,
		}}, nil)
		scope := authz.Scope(roles.ScopeWorksite, "plant-a")
		handler := guard.RequireScopedRole(roles.RoleSteward, &scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/worksites/plant-a/grievances"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("allows authenticated request and stores identity", func(t *testing.T) {
		guard := stewardGuard(t)
		handlerCalled := false
		handler := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true

			ident := GetIdentity(r)
			if ident == nil {
				t.Fatal("expected identity in request context")
			}
			if ident.UserID != "user-1" {
				t.Errorf("expected user-1, got %s", ident.UserID)
			}
			if GetAccess(r) != nil {
				t.Error("expected no access without authorization")
			}
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/me"))

		if !handlerCalled {
			t.Error("handler should have been called")
		}
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("rejects request without token", func(t *testing.T) {
		guard := stewardGuard(t)
		handler := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"authentication required"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("rejects request with invalid token", func(t *testing.T) {
		guard := stewardGuard(t)
		handler := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer forged-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})

	t.Run("reports identity outage as service unavailable", func(t *testing.T) {
		logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
		engine, err := authz.New(authz.Config{
			Identity:   outageProvider{},
			Membership: &memberStore{},
			Logger:     logger,
		})
		if err != nil {
			t.Fatalf("failed to build engine: %v", err)
		}
		guard := NewGuard(engine, outageProvider{}, logger)
		handler := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("/api/v1/me"))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"service temporarily unavailable, try again"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("writes no decision record", func(t *testing.T) {
		recorder := &countingRecorder{}
		guard := testGuard(t, &memberStore{}, recorder)
		handler := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("/api/v1/me"))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/me", nil))

		if got := recorder.count(); got != 0 {
			t.Errorf("expected no decision records for display-only auth, got %d", got)
		}
	})
}

func TestGetAccess(t *testing.T) {
	t.Run("returns access when present", func(t *testing.T) {
		want := &authz.Access{}
		ctx := contextkeys.WithAccess(context.Background(), want)
		req := httptest.NewRequest("GET", "/test", nil).WithContext(ctx)

		if got := GetAccess(req); got != want {
			t.Error("returned access does not match expected")
		}
	})

	t.Run("returns nil when absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		if GetAccess(req) != nil {
			t.Error("expected nil access")
		}
	})

	t.Run("returns nil when context value is wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), contextkeys.AccessKey, "wrong_type")
		req := httptest.NewRequest("GET", "/test", nil).WithContext(ctx)

		if GetAccess(req) != nil {
			t.Error("expected nil access for wrong type")
		}
	})
}

func TestGetIdentity(t *testing.T) {
	t.Run("returns identity when present", func(t *testing.T) {
		want := &identity.Identity{UserID: "user-1"}
		ctx := contextkeys.WithIdentity(context.Background(), want)
		req := httptest.NewRequest("GET", "/test", nil).WithContext(ctx)

		if got := GetIdentity(req); got != want {
			t.Error("returned identity does not match expected")
		}
	})

	t.Run("returns nil when absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		if GetIdentity(req) != nil {
			t.Error("expected nil identity")
		}
	})
}

func TestWriteAuthError(t *testing.T) {
	guard := stewardGuard(t)

	t.Run("maps unexpected errors to internal error", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		guard.writeAuthError(w, req, errors.New("boom"))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"internal error"}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("unwraps wrapped denials", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		wrapped := errors.Join(errors.New("context"), &authz.DeniedError{Reason: audit.ReasonInsufficientLevel})
		guard.writeAuthError(w, req, wrapped)

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
	})
}

func TestUnauthorizedResponse(t *testing.T) {
	w := httptest.NewRecorder()
	unauthorizedResponse(w, "authentication required")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}
	body := w.Body.String()
	if body != `{"error":"authentication required"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestUnavailableResponse(t *testing.T) {
	w := httptest.NewRecorder()
	unavailableResponse(w)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	body := w.Body.String()
	if body != `{"error":"service temporarily unavailable, try again"}` {
		t.Errorf("unexpected body: %s", body)
	}
}
