// Package gravatar builds profile picture URLs from email addresses.
package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/jon4hz/wayfare/internal/config"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	defaultImages = []string{"404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"}
	ratings       = []string{"g", "pg", "r", "x"}
)

// Source turns email addresses into avatar URLs. A nil Source yields no avatars.
type Source struct {
	query string
}

// New returns a Source for cfg, or nil when avatars are disabled.
func New(cfg *config.GravatarConfig) (*Source, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Set("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Set("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Set("s", strconv.Itoa(cfg.Size))
	}
	return &Source{query: params.Encode()}, nil
}

// Validate checks the optional gravatar parameters.
func Validate(cfg *config.GravatarConfig) error {
	if cfg.DefaultImage != "" && !slices.Contains(defaultImages, cfg.DefaultImage) {
		return fmt.Errorf("invalid gravatar default image %q", cfg.DefaultImage)
	}
	if cfg.Rating != "" && !slices.Contains(ratings, cfg.Rating) {
		return fmt.Errorf("invalid gravatar rating %q", cfg.Rating)
	}
	if cfg.Size != 0 && (cfg.Size < 1 || cfg.Size > 2048) {
		return fmt.Errorf("gravatar size must be between 1 and 2048, got %d", cfg.Size)
	}
	return nil
}

// URL returns the avatar of email, or an empty string for an empty email or a nil Source.
func (s *Source) URL(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if s == nil || email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(sum[:])
	if s.query != "" {
		u += "?" + s.query
	}
	return u
}
