// Package landing consumes the one-time parameters the OAuth provider
// appends to the landing address, applies them once, and scrubs them so a
// reload of the same address does nothing.
package landing

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
)

// Landing query parameters.
const (
	ParamToken           = "token"
	ParamSession         = "session"
	ParamEmail           = "email"
	ParamPlatoon         = "platoon"
	ParamPlatoonOverride = "platoon_override"
	ParamViewMode        = "viewMode"
)

// Address is the visible location the landing parameters are read from.
type Address interface {
	Current() *url.URL
	// Replace rewrites the location without navigating.
	Replace(u *url.URL)
}

// MemoryAddress is an Address held in memory.
type MemoryAddress struct {
	mu sync.Mutex
	u  *url.URL
}

// NewMemoryAddress parses raw into an address.
func NewMemoryAddress(raw string) (*MemoryAddress, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid landing address %q: %w", raw, err)
	}
	return &MemoryAddress{u: u}, nil
}

// Current returns a copy of the address.
func (a *MemoryAddress) Current() *url.URL {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := *a.u
	return &u
}

// Replace implements Address.
func (a *MemoryAddress) Replace(u *url.URL) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := *u
	a.u = &c
}

// String returns the current address.
func (a *MemoryAddress) String() string {
	return a.Current().String()
}

// Payload is what the provider handed back.
type Payload struct {
	Token    string
	Session  string
	Email    string
	Platoon  string
	ViewMode session.ViewMode
}

// LoginPayload converts p for session.Store.Login.
func (p Payload) LoginPayload() session.LoginPayload {
	return session.LoginPayload{
		Token:        p.Token,
		OAuthSession: p.Session,
		Email:        p.Email,
		Platoon:      p.Platoon,
		ViewMode:     p.ViewMode,
	}
}

// Parser reads landing parameters from an Address.
type Parser struct {
	addr Address
}

// NewParser creates a parser over addr.
func NewParser(addr Address) *Parser {
	return &Parser{addr: addr}
}

// Consume reads the landing parameters. When a token, email or platoon is
// present it calls apply with the payload, strips the whole query from the
// address and returns the payload. Otherwise it returns nil and leaves the
// address untouched.
func (p *Parser) Consume(apply func(Payload)) *Payload {
	u := p.addr.Current()
	q := u.Query()

	payload := Payload{
		Token:   q.Get(ParamToken),
		Session: q.Get(ParamSession),
		Email:   q.Get(ParamEmail),
		Platoon: q.Get(ParamPlatoon),
	}
	if payload.Platoon == "" {
		payload.Platoon = q.Get(ParamPlatoonOverride)
	}
	if payload.Token == "" && payload.Email == "" && payload.Platoon == "" {
		return nil
	}

	payload.ViewMode = session.ViewMode(q.Get(ParamViewMode))
	if !payload.ViewMode.Valid() {
		if payload.Platoon != "" {
			payload.ViewMode = session.ViewPlatoon
		} else {
			payload.ViewMode = session.ViewBattalion
		}
	}

	if apply != nil {
		apply(payload)
	}

	u.RawQuery = ""
	u.ForceQuery = false
	p.addr.Replace(u)
	return &payload
}
