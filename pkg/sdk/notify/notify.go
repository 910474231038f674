// Package notify collects user-facing notices: transient, dismissible
// notifications for failed actions and persistent banners such as the
// re-authentication prompt shown after the session is lost.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/google/uuid"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// KeyReauthenticate identifies the persistent banner raised on auth loss.
const KeyReauthenticate = "reauthenticate"

// Notice is one entry in the notification center.
type Notice struct {
	ID      string
	Key     string // optional; a notice with the same key replaces the previous one
	Level   Level
	Action  string
	Message string
	// Persistent notices cannot be dismissed by the user, only cleared by key.
	Persistent bool
	CreatedAt  time.Time
}

// Center stores active notices. It is safe for concurrent use.
type Center struct {
	mu        sync.Mutex
	notices   []Notice
	listeners map[int]func(Notice)
	nextID    int
	now       func() time.Time
}

// NewCenter returns an empty notification center.
func NewCenter() *Center {
	return &Center{
		listeners: make(map[int]func(Notice)),
		now:       time.Now,
	}
}

// Push adds n and returns its ID.
func (c *Center) Push(n Notice) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	c.mu.Lock()
	n.CreatedAt = c.now()
	if n.Key != "" {
		c.removeKeyLocked(n.Key)
	}
	c.notices = append(c.notices, n)
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return n.ID
}

// Failure reports a failed action as a dismissible error notice. Benign
// errors (aborted requests, network failures) are not shown and return "".
func (c *Center) Failure(action string, err error) string {
	if err == nil || sdk.IsBenign(err) {
		return ""
	}
	return c.Push(Notice{
		Level:   LevelError,
		Action:  action,
		Message: describe(action, err),
	})
}

// Reauthenticate raises the persistent re-authentication banner.
func (c *Center) Reauthenticate() string {
	return c.Push(Notice{
		Key:        KeyReauthenticate,
		Level:      LevelWarning,
		Action:     "session",
		Message:    "Your session has expired. Sign in again to continue.",
		Persistent: true,
	})
}

// Dismiss removes a non-persistent notice. It reports whether anything was removed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID != id {
			continue
		}
		if n.Persistent {
			return false
		}
		c.notices = append(c.notices[:i], c.notices[i+1:]...)
		return true
	}
	return false
}

// Clear removes every notice with key, persistent or not.
func (c *Center) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeKeyLocked(key)
}

// Active returns a copy of the current notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Subscribe calls fn for every pushed notice until the returned func is called.
func (c *Center) Subscribe(fn func(Notice)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Center) removeKeyLocked(key string) {
	kept := c.notices[:0]
	for _, n := range c.notices {
		if n.Key != key {
			kept = append(kept, n)
		}
	}
	c.notices = kept
}

func (c *Center) snapshotListenersLocked() []func(Notice) {
	out := make([]func(Notice), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func describe(action string, err error) string {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		if detail := apiErr.DetailOrEmpty(); detail != "" {
			return fmt.Sprintf("%s failed (%d): %s", action, apiErr.Status, detail)
		}
		return fmt.Sprintf("%s failed (%d)", action, apiErr.Status)
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}
