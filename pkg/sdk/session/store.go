// Package session owns the two halves of client state: persisted
// Preferences, written to durable storage on every change, and the volatile
// Session holding the authenticated identity. All mutations go through the
// Store's Update, Login and Logout entry points.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/notify"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
	"github.com/golang-jwt/jwt/v5"
)

// StorageKey is the fixed key the Preferences partition is stored under.
const StorageKey = "spearhead.preferences"

// DefaultTopN replaces any invalid top-N value.
const DefaultTopN = 5

// TabDashboard is the tab shown after login.
const TabDashboard = "dashboard"

// ErrInvalidTransition is returned for a session phase change the state
// machine does not allow.
var ErrInvalidTransition = errors.New("invalid session transition")

// ViewMode is the scope of the dashboard.
type ViewMode string

const (
	ViewBattalion ViewMode = "battalion"
	ViewPlatoon   ViewMode = "platoon"
)

// Valid reports whether m is a known mode.
func (m ViewMode) Valid() bool {
	return m == ViewBattalion || m == ViewPlatoon
}

// Preferences survive restarts. They never hold credentials.
type Preferences struct {
	APIBase  string   `json:"apiBase"`
	Section  string   `json:"section"`
	TopN     int      `json:"topN"`
	Week     string   `json:"week"`
	ViewMode ViewMode `json:"viewMode"`
}

// User is the authenticated person. Platoon is set for users restricted
// to a single platoon.
type User struct {
	Email   string
	Platoon string
}

// Session is the volatile identity and navigation scope. It exists only in memory.
type Session struct {
	User         *User
	Token        string
	OAuthSession string
	ActiveTab    string
	Platoon      string
}

// Identity is the value cache entries and automatic syncs are scoped by.
func (s Session) Identity() string {
	if s.Token != "" {
		return s.Token
	}
	return s.OAuthSession
}

// Restricted reports whether the user may only see their own platoon.
func (s Session) Restricted() bool {
	return s.User != nil && s.User.Platoon != ""
}

// TokenExpiry reads the exp claim when the token is a JWT. The signature
// is not verified; the value is a display hint only.
func (s Session) TokenExpiry() (time.Time, bool) {
	if s.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Phase is the authentication state of the session.
type Phase int

const (
	PhaseAnonymous Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the merged view of both partitions.
type State struct {
	Preferences
	Session
	Phase Phase
}

// LoginPayload is what a login action or the OAuth landing provides.
type LoginPayload struct {
	Token        string
	OAuthSession string
	Email        string
	Platoon      string
	ViewMode     ViewMode
}

// Listener observes every state change.
type Listener func(prev, next State)

// Store is the single owner of Preferences and Session. It is safe for
// concurrent use and implements sdk.CredentialSource.
type Store struct {
	mu      sync.RWMutex
	prefs   Preferences
	sess    Session
	phase   Phase
	backend storage.Backend
	logger  *log.Logger
	notices *notify.Center

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

var _ sdk.CredentialSource = (*Store)(nil)

// Options configure a Store.
type Options struct {
	Logger   *log.Logger
	Notices  *notify.Center
	Defaults Preferences
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger for discarded or failed persistence.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithNotices sets where the re-authentication banner is raised.
func WithNotices(center *notify.Center) Option {
	return func(o *Options) { o.Notices = center }
}

// WithDefaults sets the preferences used when nothing valid is stored.
func WithDefaults(prefs Preferences) Option {
	return func(o *Options) { o.Defaults = prefs }
}

// DefaultPreferences are used when nothing valid is stored.
func DefaultPreferences() Preferences {
	return Preferences{TopN: DefaultTopN, ViewMode: ViewBattalion}
}

// New creates a store backed by backend and loads the stored preferences.
// A missing or unreadable value is never fatal; defaults are used instead.
func New(ctx context.Context, backend storage.Backend, optFns ...Option) *Store {
	opts := Options{Defaults: DefaultPreferences()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	if opts.Notices == nil {
		opts.Notices = notify.NewCenter()
	}
	opts.Defaults.TopN = normalizeTopN(opts.Defaults.TopN)
	if !opts.Defaults.ViewMode.Valid() {
		opts.Defaults.ViewMode = ViewBattalion
	}

	s := &Store{
		backend:   backend,
		logger:    opts.Logger,
		notices:   opts.Notices,
		listeners: make(map[int]Listener),
	}
	s.prefs = s.load(ctx, opts.Defaults)
	return s
}

// State returns a copy of the merged state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Credentials implements sdk.CredentialSource.
func (s *Store) Credentials() sdk.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sdk.Credentials{AccessToken: s.sess.Token, SessionID: s.sess.OAuthSession}
}

// Notices returns the notification center the store reports to.
func (s *Store) Notices() *notify.Center {
	return s.notices
}

// Update applies changes atomically. When any change touches Preferences
// the partition is persisted; a persistence failure is returned but the
// in-memory state keeps the change.
func (s *Store) Update(ctx context.Context, changes ...Change) error {
	return s.mutate(ctx, func(m *mutation) {
		for _, c := range changes {
			c.apply(m)
		}
	})
}

// BeginAuthentication marks an OAuth redirect as pending.
func (s *Store) BeginAuthentication() error {
	s.mu.Lock()
	if s.phase != PhaseAnonymous {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, phase, PhaseAuthenticating)
	}
	prev := s.stateLocked()
	s.phase = PhaseAuthenticating
	next := s.stateLocked()
	s.mu.Unlock()

	s.emit(prev, next)
	return nil
}

// CancelAuthentication returns a pending authentication to anonymous.
func (s *Store) CancelAuthentication() {
	s.mu.Lock()
	if s.phase != PhaseAuthenticating {
		s.mu.Unlock()
		return
	}
	prev := s.stateLocked()
	s.phase = PhaseAnonymous
	next := s.stateLocked()
	s.mu.Unlock()

	s.emit(prev, next)
}

// Login installs a new identity. Platoon and view mode come from the
// payload and fall back to the current values; a payload platoon without
// an explicit view mode selects platoon scope.
func (s *Store) Login(ctx context.Context, payload LoginPayload) error {
	err := s.mutate(ctx, func(m *mutation) {
		platoon := payload.Platoon
		if platoon == "" {
			platoon = m.sess.Platoon
		}

		mode := payload.ViewMode
		if !mode.Valid() {
			if payload.Platoon != "" {
				mode = ViewPlatoon
			} else {
				mode = m.prefs.ViewMode
			}
		}

		m.sess.User = &User{Email: payload.Email, Platoon: payload.Platoon}
		m.sess.Token = payload.Token
		m.sess.OAuthSession = payload.OAuthSession
		m.sess.Platoon = platoon
		m.sess.ActiveTab = TabDashboard
		if m.prefs.ViewMode != mode {
			m.prefs.ViewMode = mode
			m.prefsTouched = true
		}
	}, PhaseAuthenticated)
	s.notices.Clear(notify.KeyReauthenticate)
	return err
}

// Logout drops the identity. Preferences other than the view mode survive.
func (s *Store) Logout(ctx context.Context) error {
	return s.mutate(ctx, func(m *mutation) {
		m.sess.User = nil
		m.sess.Token = ""
		m.sess.OAuthSession = ""
		m.sess.Platoon = ""
		if m.prefs.ViewMode != ViewBattalion {
			m.prefs.ViewMode = ViewBattalion
			m.prefsTouched = true
		}
	}, PhaseAnonymous)
}

// HandleUnauthorized is the gateway's 401 side effect: the session is
// dropped and a persistent banner asks the user to sign in again.
func (s *Store) HandleUnauthorized() {
	if err := s.Logout(context.Background()); err != nil {
		s.logger.Printf("logout after 401: %v", err)
	}
	s.notices.Reauthenticate()
}

// Reload re-reads Preferences from storage, e.g. after another process
// changed them. Unreadable values are ignored and the current values kept.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	prev := s.stateLocked()
	s.prefs = s.load(ctx, s.prefs)
	next := s.stateLocked()
	s.mu.Unlock()

	if prev.Preferences != next.Preferences {
		s.emit(prev, next)
	}
}

// Subscribe registers fn for every change until the returned func is called.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) mutate(ctx context.Context, fn func(*mutation), phase ...Phase) error {
	s.mu.Lock()
	prev := s.stateLocked()
	m := mutation{prefs: s.prefs, sess: s.sess}
	if m.sess.User != nil {
		u := *m.sess.User
		m.sess.User = &u
	}
	fn(&m)
	if m.topNTouched || m.prefs.TopN != s.prefs.TopN {
		m.prefs.TopN = normalizeTopN(m.prefs.TopN)
	}
	s.prefs, s.sess = m.prefs, m.sess
	if len(phase) > 0 {
		s.phase = phase[0]
	}
	next := s.stateLocked()

	var err error
	if m.prefsTouched {
		err = s.persistLocked(ctx)
	}
	s.mu.Unlock()

	s.emit(prev, next)
	return err
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.backend.Put(ctx, StorageKey, data); err != nil {
		s.logger.Printf("persist preferences: %v", err)
		return fmt.Errorf("persist preferences: %w", err)
	}
	return nil
}

// load decodes stored preferences over base.
func (s *Store) load(ctx context.Context, base Preferences) Preferences {
	data, err := s.backend.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("read preferences: %v", err)
		}
		return base
	}

	prefs := base
	if err := json.Unmarshal(data, &prefs); err != nil {
		s.logger.Printf("discarding unreadable preferences: %v", err)
		return base
	}
	prefs.TopN = normalizeTopN(prefs.TopN)
	if !prefs.ViewMode.Valid() {
		prefs.ViewMode = ViewBattalion
	}
	return prefs
}

func (s *Store) stateLocked() State {
	st := State{Preferences: s.prefs, Session: s.sess, Phase: s.phase}
	if s.sess.User != nil {
		u := *s.sess.User
		st.Session.User = &u
	}
	return st
}

func (s *Store) emit(prev, next State) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
}
