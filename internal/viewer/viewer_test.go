package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/database/mock"
	"github.com/jon4hz/wayfare/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingIdentity(calls *int, user *identity.User, err error) identity.Resolver {
	return identity.ResolverFunc(func(context.Context, identity.Tokens) (*identity.User, *identity.Tokens, error) {
		*calls++
		return user, nil, err
	})
}

func TestResolver_MemoizesLookups(t *testing.T) {
	ctx := context.Background()
	db := mock.NewMockDB()
	db.PutProfile(database.Profile{ID: "user-1", Status: database.ProfileStatusApproved, Role: database.RoleUser})

	var identityCalls int
	r := New(
		countingIdentity(&identityCalls, &identity.User{ID: "user-1"}, nil),
		db,
		identity.Tokens{AccessToken: "token"},
	)

	for range 5 {
		v := r.Viewer(ctx)
		require.True(t, v.Authenticated())
		assert.True(t, v.Profile.IsApproved())
		_, _ = r.User(ctx)
		_, _ = r.Profile(ctx)
	}

	assert.Equal(t, 1, identityCalls)
	assert.Equal(t, 1, db.GetProfileCalls)
}

func TestResolver_NoSession(t *testing.T) {
	ctx := context.Background()
	db := mock.NewMockDB()

	var identityCalls int
	r := New(countingIdentity(&identityCalls, nil, nil), db, identity.Tokens{})

	_, err := r.User(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)
	profile, err := r.Profile(ctx)
	assert.NoError(t, err)
	assert.Nil(t, profile)
	assert.Equal(t, Viewer{}, r.Viewer(ctx))

	assert.Zero(t, identityCalls)
	assert.Zero(t, db.GetProfileCalls)
}

func TestResolver_MissingProfile(t *testing.T) {
	ctx := context.Background()
	db := mock.NewMockDB()

	var identityCalls int
	r := New(countingIdentity(&identityCalls, &identity.User{ID: "new-user"}, nil), db, identity.Tokens{AccessToken: "token"})

	profile, err := r.Profile(ctx)
	assert.NoError(t, err)
	assert.Nil(t, profile)

	v := r.Viewer(ctx)
	assert.True(t, v.Authenticated())
	assert.Nil(t, v.Profile)
	assert.Equal(t, 1, db.GetProfileCalls)
}

func TestResolver_ProfileLookupFails(t *testing.T) {
	ctx := context.Background()
	db := mock.NewMockDB()
	db.GetProfileError = errors.New("connection refused")

	var identityCalls int
	r := New(countingIdentity(&identityCalls, &identity.User{ID: "user-1"}, nil), db, identity.Tokens{AccessToken: "token"})

	_, err := r.Profile(ctx)
	assert.Error(t, err)
	_, err = r.Profile(ctx)
	assert.Error(t, err)
	assert.Nil(t, r.Viewer(ctx).Profile)
	assert.Equal(t, 1, db.GetProfileCalls)
}

func TestResolver_InvalidSession(t *testing.T) {
	var identityCalls int
	r := New(countingIdentity(&identityCalls, nil, identity.ErrInvalidSession), mock.NewMockDB(), identity.Tokens{AccessToken: "expired"})

	_, err := r.User(context.Background())
	assert.ErrorIs(t, err, identity.ErrInvalidSession)
	assert.False(t, r.Viewer(context.Background()).Authenticated())
	assert.Equal(t, 1, identityCalls)
}

func TestResolver_Refreshed(t *testing.T) {
	refreshed := &identity.Tokens{AccessToken: "new"}
	r := New(identity.ResolverFunc(func(context.Context, identity.Tokens) (*identity.User, *identity.Tokens, error) {
		return &identity.User{ID: "user-1"}, refreshed, nil
	}), nil, identity.Tokens{AccessToken: "old"})

	assert.Equal(t, "old", r.Tokens().AccessToken)
	_, err := r.User(context.Background())
	require.NoError(t, err)
	assert.Same(t, refreshed, r.Refreshed())
	assert.Equal(t, "new", r.Tokens().AccessToken)
}

func TestFromContext(t *testing.T) {
	r := FromContext(context.Background())
	require.NotNil(t, r)
	assert.False(t, r.Viewer(context.Background()).Authenticated())

	stored := New(nil, nil, identity.Tokens{})
	ctx := WithResolver(context.Background(), stored)
	assert.Same(t, stored, FromContext(ctx))
}
