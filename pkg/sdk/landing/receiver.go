package landing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/zitadel/oidc/v3/pkg/client/rp/cli"
)

// DefaultLoginPath is the backend route that starts the OAuth redirect.
const DefaultLoginPath = "/auth/login"

// CallbackPath is where the loopback receiver expects the provider redirect.
const CallbackPath = "/callback"

const landedPage = `<!doctype html><html><body><p>Signed in to Spearhead. You can close this window.</p></body></html>`

// Receiver is a loopback HTTP listener that captures the landing address
// the provider redirects the browser to.
type Receiver struct {
	listener net.Listener
	server   *http.Server
	landed   chan *MemoryAddress
	once     sync.Once
}

// NewReceiver listens on a random loopback port.
func NewReceiver() (*Receiver, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	r := &Receiver{
		listener: listener,
		landed:   make(chan *MemoryAddress, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, r.handleCallback)
	r.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		_ = r.server.Serve(listener)
	}()
	return r, nil
}

// RedirectURI is the callback address to hand to the provider.
func (r *Receiver) RedirectURI() string {
	return "http://" + r.listener.Addr().String() + CallbackPath
}

// Wait blocks until the provider redirect arrives or ctx is done.
func (r *Receiver) Wait(ctx context.Context) (*MemoryAddress, error) {
	select {
	case addr := <-r.landed:
		return addr, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for OAuth callback: %w", ctx.Err())
	}
}

// Close stops the listener.
func (r *Receiver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.server.Shutdown(ctx)
}

func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	landed := *req.URL
	landed.Scheme = "http"
	landed.Host = req.Host

	r.once.Do(func() {
		r.landed <- &MemoryAddress{u: &landed}
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(landedPage))
}

// LoginURL builds the backend login address that redirects back to redirectURI.
func LoginURL(apiBase, loginPath, redirectURI string) (string, error) {
	base, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("invalid API base %q: %w", apiBase, err)
	}
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	u := base.JoinPath(loginPath)
	q := u.Query()
	q.Set("redirect_uri", redirectURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AuthOptions configure Authenticate.
type AuthOptions struct {
	APIBase   string
	LoginPath string
	// Open shows the login address to the user. Defaults to opening the system browser.
	Open func(loginURL string)
}

// ErrNoCredentials is returned when the provider redirect carried no landing parameters.
var ErrNoCredentials = errors.New("OAuth callback carried no credentials")

// Authenticate runs the browser login: the store enters the authenticating
// phase, the login address is opened, and the landing parameters of the
// redirect are applied through store.Login.
func Authenticate(ctx context.Context, store *session.Store, opts AuthOptions) (*Payload, error) {
	if err := store.BeginAuthentication(); err != nil {
		return nil, err
	}

	receiver, err := NewReceiver()
	if err != nil {
		store.CancelAuthentication()
		return nil, err
	}
	defer receiver.Close()

	loginURL, err := LoginURL(opts.APIBase, opts.LoginPath, receiver.RedirectURI())
	if err != nil {
		store.CancelAuthentication()
		return nil, err
	}
	open := opts.Open
	if open == nil {
		open = cli.OpenBrowser
	}
	open(loginURL)

	addr, err := receiver.Wait(ctx)
	if err != nil {
		store.CancelAuthentication()
		return nil, err
	}

	var loginErr error
	payload := NewParser(addr).Consume(func(p Payload) {
		loginErr = store.Login(ctx, p.LoginPayload())
	})
	if payload == nil {
		store.CancelAuthentication()
		return nil, ErrNoCredentials
	}
	if loginErr != nil {
		return payload, fmt.Errorf("apply login: %w", loginErr)
	}
	return payload, nil
}
