// Package identity holds the provider-neutral view of an authenticated session.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when the request carries no session tokens.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned when the session tokens were rejected and could not be refreshed.
	ErrInvalidSession = errors.New("invalid session")
)

// User is the identity behind a valid session.
type User struct {
	ID    string
	Email string
}

// Tokens are the credentials persisted in the session cookie.
type Tokens struct {
	// Provider is the name of the provider that issued the tokens.
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Empty reports whether no session was ever established.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Expired reports whether the access token is past its expiry, allowing for clock skew.
func (t Tokens) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(30 * time.Second).After(t.ExpiresAt)
}

// Resolver turns session tokens into a user.
// When the provider had to refresh the tokens, the new ones are returned alongside the user.
type Resolver interface {
	Resolve(ctx context.Context, tokens Tokens) (*User, *Tokens, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, tokens Tokens) (*User, *Tokens, error)

func (f ResolverFunc) Resolve(ctx context.Context, tokens Tokens) (*User, *Tokens, error) {
	return f(ctx, tokens)
}
