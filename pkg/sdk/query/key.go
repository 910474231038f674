package query

import (
	"sort"
	"strings"
)

// Scope is the session identity a cache entry belongs to. Entries of
// different scopes never share a slot.
type Scope struct {
	BaseURL  string
	Identity string
}

// Key identifies one cache slot: a resource, its resolved parameters and
// the scope that fetched it. Equal keys share a slot.
type Key struct {
	Resource string
	Params   map[string]string
	Scope    Scope
}

// NewKey builds a key. Empty parameter values are dropped so that
// {"platoon": ""} and {} address the same slot.
func NewKey(scope Scope, resource string, params map[string]string) Key {
	resolved := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" {
			resolved[k] = v
		}
	}
	return Key{Resource: resource, Params: resolved, Scope: scope}
}

// String returns the canonical form used as the slot identifier.
func (k Key) String() string {
	names := make([]string, 0, len(k.Params))
	for name, value := range k.Params {
		if value != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Scope.BaseURL)
	b.WriteByte('|')
	b.WriteString(k.Scope.Identity)
	b.WriteByte('|')
	b.WriteString(k.Resource)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Params[name])
	}
	return b.String()
}

// Match returns a predicate selecting keys of scope whose resource is one
// of resources. With no resources every key of scope matches.
func Match(scope Scope, resources ...string) func(Key) bool {
	return func(k Key) bool {
		if k.Scope != scope {
			return false
		}
		if len(resources) == 0 {
			return true
		}
		for _, r := range resources {
			if k.Resource == r {
				return true
			}
		}
		return false
	}
}

// NotScope returns a predicate selecting every key outside scope.
func NotScope(scope Scope) func(Key) bool {
	return func(k Key) bool {
		return k.Scope != scope
	}
}
