package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// StaticProvider authenticates against a fixed token table. It backs local
// development and tests; production deployments use OIDCProvider.
type StaticProvider struct {
	mu       sync.RWMutex
	tokens   map[string]Identity
	profiles map[string]Profile
}

// NewStaticProvider returns an empty provider. Every request fails until
// tokens are registered.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		tokens:   make(map[string]Identity),
		profiles: make(map[string]Profile),
	}
}

// Register maps a bearer token to the identity it authenticates as.
func (p *StaticProvider) Register(token string, ident Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = ident
}

// RegisterProfile stores a display profile served by Profile.
func (p *StaticProvider) RegisterProfile(profile Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.UserID] = profile
}

// Authenticate resolves the request's bearer token against the registered
// table.
func (p *StaticProvider) Authenticate(r *http.Request) (*Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	ident, ok := p.tokens[raw]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidToken)
	}
	return &ident, nil
}

// Profile returns the registered display profile for the user.
func (p *StaticProvider) Profile(_ context.Context, userID string) (*Profile, error) {
	p.mu.RLock()
	profile, ok := p.profiles[userID]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &profile, nil
}
