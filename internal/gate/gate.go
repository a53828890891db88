// Package gate decides how a request is routed based on its session and the account status.
package gate

import (
	"strings"

	"github.com/jon4hz/wayfare/internal/database"
	"github.com/jon4hz/wayfare/internal/identity"
)

const (
	LoginPath   = "/login"
	PendingPath = "/pending"
	HomePath    = "/trips"
	authPrefix  = "/auth/"
)

// Action is what the middleware does with the request.
type Action int

const (
	Pass Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "pass"
}

// CookieKind is the kind of change applied to the session cookie.
type CookieKind int

const (
	SetTokens CookieKind = iota
	Clear
)

// CookieMutation is a change to the session cookie carried by a decision.
type CookieMutation struct {
	Kind   CookieKind
	Tokens identity.Tokens // only for SetTokens
}

// Input is everything the gate needs to know about a request.
type Input struct {
	Path string
	// User is the session user, nil without a valid session.
	User *identity.User
	// Refreshed holds new tokens when the provider refreshed the session.
	Refreshed *identity.Tokens
	// Expired is set when the request carried tokens that were rejected.
	Expired bool
	// Profile is the user's profile. Nil when it was not looked up, is missing or the lookup failed.
	Profile *database.Profile
}

// Decision is the routing outcome for a request.
type Decision struct {
	Action   Action
	Location string
	Cookies  []CookieMutation
}

// IsPublic reports whether path is reachable without a session.
func IsPublic(path string) bool {
	return path == LoginPath || path == PendingPath || isAuth(path)
}

// NeedsProfile reports whether the profile must be looked up for path.
func NeedsProfile(path string) bool {
	return path != PendingPath && !isAuth(path)
}

func isAuth(path string) bool {
	return strings.HasPrefix(path, authPrefix)
}

// Decide routes a request.
//
// Without a session only public paths pass. A missing profile fails open.
// Profiles that are not approved are confined to the pending page and approved
// users never see the login page.
func Decide(in Input) Decision {
	d := Decision{Action: Pass, Cookies: cookies(in)}

	switch {
	case in.User == nil:
		if !IsPublic(in.Path) {
			d.redirect(LoginPath)
		}
	case !NeedsProfile(in.Path), in.Profile == nil:
	case !in.Profile.IsApproved():
		d.redirect(PendingPath)
	case in.Path == LoginPath:
		d.redirect(HomePath)
	}
	return d
}

func (d *Decision) redirect(location string) {
	d.Action = Redirect
	d.Location = location
}

func cookies(in Input) []CookieMutation {
	switch {
	case in.User != nil && in.Refreshed != nil:
		return []CookieMutation{{Kind: SetTokens, Tokens: *in.Refreshed}}
	case in.User == nil && in.Expired:
		return []CookieMutation{{Kind: Clear}}
	}
	return nil
}
