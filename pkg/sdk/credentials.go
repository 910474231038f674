package sdk

import (
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultSessionHeader carries the OAuth session identifier next to the bearer token.
const DefaultSessionHeader = "X-Session-Id"

// Credentials represents the authentication material of the active session.
type Credentials struct {
	AccessToken string
	SessionID   string
}

// IsAnonymous reports whether no credential is present.
func (c Credentials) IsAnonymous() bool {
	return c.AccessToken == "" && c.SessionID == ""
}

// CredentialSource yields the current credentials for every request. The
// session store implements it so that login and logout take effect on the
// next request without rebuilding the client.
type CredentialSource interface {
	Credentials() Credentials
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() Credentials

// Credentials implements CredentialSource.
func (f CredentialFunc) Credentials() Credentials {
	return f()
}

// credentialTransport injects the bearer token and session header. Anonymous
// requests pass through untouched so the server sees no auth headers at all.
type credentialTransport struct {
	source        CredentialSource
	sessionHeader string
	base          http.RoundTripper
}

func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var creds Credentials
	if t.source != nil {
		creds = t.source.Credentials()
	}
	if creds.IsAnonymous() {
		return t.base.RoundTrip(req)
	}

	if creds.SessionID != "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(t.sessionHeader, creds.SessionID)
	}
	if creds.AccessToken == "" {
		return t.base.RoundTrip(req)
	}

	token := &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}
	bearer := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(token),
		Base:   t.base,
	}
	return bearer.RoundTrip(req)
}
