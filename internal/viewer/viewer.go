// Package viewer resolves the user and profile behind a request at most once.
package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
)

// ProfileStore is the subset of the store the resolver reads from.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*database.Profile, error)
}

// Viewer is the authenticated user and their profile. Both are nil when unauthenticated.
type Viewer struct {
	User    *identity.User
	Profile *database.Profile
}

// Authenticated reports whether the viewer has a valid session.
func (v Viewer) Authenticated() bool {
	return v.User != nil
}

// Resolver memoizes the identity and profile lookups of one request.
type Resolver struct {
	identity identity.Resolver
	store    ProfileStore
	tokens   identity.Tokens

	userOnce  sync.Once
	user      *identity.User
	refreshed *identity.Tokens
	userErr   error

	profileOnce sync.Once
	profile     *database.Profile
	profileErr  error
}

// New creates a resolver for a request carrying tokens.
func New(id identity.Resolver, store ProfileStore, tokens identity.Tokens) *Resolver {
	return &Resolver{
		identity: id,
		store:    store,
		tokens:   tokens,
	}
}

// Anonymous returns a resolver for a request without a session.
func Anonymous() *Resolver {
	return &Resolver{}
}

// User returns the session user. It returns identity.ErrNoSession without tokens.
func (r *Resolver) User(ctx context.Context) (*identity.User, error) {
	r.userOnce.Do(func() {
		if r.identity == nil || r.tokens.Empty() {
			r.userErr = identity.ErrNoSession
			return
		}
		r.user, r.refreshed, r.userErr = r.identity.Resolve(ctx, r.tokens)
		if r.userErr == nil && r.user == nil {
			r.userErr = identity.ErrInvalidSession
		}
	})
	return r.user, r.userErr
}

// Refreshed returns the tokens issued by a refresh during User, if any.
func (r *Resolver) Refreshed() *identity.Tokens {
	return r.refreshed
}

// Tokens returns the current session tokens, preferring refreshed ones.
func (r *Resolver) Tokens() identity.Tokens {
	if r.refreshed != nil {
		return *r.refreshed
	}
	return r.tokens
}

// Profile returns the profile of the session user.
// It returns nil, nil without a session or when the profile row does not exist.
func (r *Resolver) Profile(ctx context.Context) (*database.Profile, error) {
	r.profileOnce.Do(func() {
		user, err := r.User(ctx)
		if err != nil || r.store == nil {
			return
		}
		r.profile, r.profileErr = r.store.GetProfile(ctx, user.ID)
		if errors.Is(r.profileErr, database.ErrNotFound) {
			r.profile, r.profileErr = nil, nil
		}
	})
	return r.profile, r.profileErr
}

// Viewer returns the user and profile. Lookup failures yield nil fields.
func (r *Resolver) Viewer(ctx context.Context) Viewer {
	user, err := r.User(ctx)
	if err != nil {
		return Viewer{}
	}
	profile, _ := r.Profile(ctx)
	return Viewer{User: user, Profile: profile}
}

type resolverKey struct{}

// WithResolver stores r in ctx.
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, r)
}

// FromContext returns the resolver stored in ctx or an anonymous one.
func FromContext(ctx context.Context) *Resolver {
	if r, ok := ctx.Value(resolverKey{}).(*Resolver); ok && r != nil {
		return r
	}
	return Anonymous()
}
