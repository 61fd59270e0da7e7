package identity

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrNoToken indicates the request carried no bearer token
	ErrNoToken = errors.New("identity: no bearer token")

	// ErrInvalidToken indicates the bearer token failed verification
	ErrInvalidToken = errors.New("identity: invalid token")

	// ErrProfileNotFound indicates no display profile is known for the user
	ErrProfileNotFound = errors.New("identity: profile not found")
)

// Identity is the authenticated caller as asserted by the identity
// provider. Only UserID and OrganizationID participate in authorization
// decisions. Email and Name are display metadata from token claims and
// must never be treated as authoritative.
type Identity struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Issuer         string `json:"issuer,omitempty"`
}

// Profile is display-only user information sourced from the identity
// provider's userinfo endpoint.
type Profile struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Provider authenticates HTTP requests and serves display profiles.
//
// Authenticate returns ErrNoToken when the request carries no
// credentials and ErrInvalidToken when they fail verification. Any
// other error means the provider itself could not be reached and the
// caller must fail closed.
type Provider interface {
	Authenticate(r *http.Request) (*Identity, error)
	Profile(ctx context.Context, userID string) (*Profile, error)
}
