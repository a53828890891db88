package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Tokens{}.Empty())
	assert.False(t, Tokens{RefreshToken: "r"}.Empty())

	assert.False(t, Tokens{AccessToken: "a"}.Expired(now))
	assert.False(t, Tokens{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}.Expired(now))
	assert.True(t, Tokens{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)}.Expired(now))
	assert.True(t, Tokens{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}
