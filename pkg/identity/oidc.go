package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"

	"github.com/unioneyes/warden/pkg/observability"
)

// DefaultOrganizationClaim is the token claim carrying the organization the
// caller is acting within.
const DefaultOrganizationClaim = "org_id"

const defaultProfileCacheSize = 1024

// OIDCConfig configures bearer token verification against an OpenID Connect
// issuer.
type OIDCConfig struct {
	// IssuerURL is the OIDC issuer used for discovery. Required.
	IssuerURL string

	// ClientID is the audience expected in presented tokens. Required.
	ClientID string

	// SkipIssuerCheck disables issuer validation, for providers that issue
	// tokens under a different URL than their discovery document.
	SkipIssuerCheck bool

	// OrganizationClaim names the claim carrying the organization ID.
	// Defaults to DefaultOrganizationClaim. Only the token decides the
	// organization context; headers and paths never override it.
	OrganizationClaim string

	// FetchUserinfo enriches display profiles from the issuer's userinfo
	// endpoint using the presented bearer token. Off by default; enable
	// when the issuer accepts access tokens there.
	FetchUserinfo bool

	// ProfileCacheSize bounds the display-profile cache. Defaults to 1024.
	ProfileCacheSize int

	// Metrics receives verification and cache counters. Optional.
	Metrics *observability.Metrics
}

// OIDCProvider verifies bearer tokens against an OIDC issuer and maps their
// claims to an Identity. Display profiles are cached per user; they are
// presentation data and never feed authorization decisions.
type OIDCProvider struct {
	cfg      OIDCConfig
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	profiles *lru.Cache[string, Profile]
}

// NewOIDCProvider discovers the issuer and builds a verifier.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("identity: issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("identity: client ID is required")
	}
	if cfg.OrganizationClaim == "" {
		cfg.OrganizationClaim = DefaultOrganizationClaim
	}
	if cfg.ProfileCacheSize <= 0 {
		cfg.ProfileCacheSize = defaultProfileCacheSize
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: cfg.SkipIssuerCheck,
	})

	profiles, err := lru.New[string, Profile](cfg.ProfileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}

	return &OIDCProvider{
		cfg:      cfg,
		provider: provider,
		verifier: verifier,
		profiles: profiles,
	}, nil
}

// Authenticate verifies the request's bearer token and maps its claims to
// an Identity. A missing token returns ErrNoToken and a failed verification
// ErrInvalidToken; an unreachable issuer returns a plain error so callers
// fail closed instead of treating the outage as bad credentials.
func (p *OIDCProvider) Authenticate(r *http.Request) (*Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			p.observeVerification("error")
			return nil, fmt.Errorf("failed to reach token issuer: %w", err)
		}
		p.observeVerification("invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p.observeVerification("ok")

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: unparseable claims: %v", ErrInvalidToken, err)
	}

	ident := identityFromClaims(idToken.Subject, idToken.Issuer, claims, p.cfg.OrganizationClaim)
	if ident.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	p.cacheProfile(ctx, raw, ident, claims)
	return ident, nil
}

// Profile returns the cached display profile for the user, populated by
// their own authenticated requests. ErrProfileNotFound when the user has
// not authenticated recently enough to be cached.
func (p *OIDCProvider) Profile(ctx context.Context, userID string) (*Profile, error) {
	if profile, ok := p.profiles.Get(userID); ok {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.ProfileCacheHitsTotal.Inc()
		}
		return &profile, nil
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ProfileCacheMissesTotal.Inc()
	}
	return nil, ErrProfileNotFound
}

// cacheProfile stores display data from the token claims, optionally
// enriched from the userinfo endpoint with the caller's own token. Userinfo
// failures are ignored: profiles are cosmetic and must never block
// authentication.
func (p *OIDCProvider) cacheProfile(ctx context.Context, raw string, ident *Identity, claims map[string]interface{}) {
	profile := profileFromClaims(ident.UserID, claims)

	if p.cfg.FetchUserinfo {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: raw})
		if info, err := p.provider.UserInfo(ctx, source); err == nil {
			var extra map[string]interface{}
			if err := info.Claims(&extra); err == nil {
				if email := stringClaim(extra, "email"); email != "" {
					profile.Email = email
				}
				if name := stringClaim(extra, "name"); name != "" {
					profile.Name = name
				}
				if picture := stringClaim(extra, "picture"); picture != "" {
					profile.AvatarURL = picture
				}
			}
		}
	}

	p.profiles.Add(ident.UserID, *profile)
}

func (p *OIDCProvider) observeVerification(status string) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.TokenVerificationsTotal.WithLabelValues(status).Inc()
	}
}

func identityFromClaims(subject, issuer string, claims map[string]interface{}, orgClaim string) *Identity {
	return &Identity{
		UserID:         subject,
		OrganizationID: stringClaim(claims, orgClaim),
		Email:          stringClaim(claims, "email"),
		Name:           stringClaim(claims, "name"),
		Issuer:         issuer,
	}
}

func profileFromClaims(userID string, claims map[string]interface{}) *Profile {
	return &Profile{
		UserID:    userID,
		Email:     stringClaim(claims, "email"),
		Name:      stringClaim(claims, "name"),
		AvatarURL: stringClaim(claims, "picture"),
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Absent header: ErrNoToken. Present but malformed: ErrInvalidToken.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return parts[1], nil
}
