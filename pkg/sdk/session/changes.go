package session

import (
	"math"
	"strconv"
	"strings"
)

// Change is one field update routed to exactly one partition. Values are
// built only through the constructors below, each of which is typed by the
// partition it writes.
type Change interface {
	apply(m *mutation)
}

// PreferenceChange writes the persisted partition.
type PreferenceChange func(*Preferences)

func (c PreferenceChange) apply(m *mutation) {
	c(&m.prefs)
	m.prefsTouched = true
}

// SessionChange writes the volatile partition.
type SessionChange func(*Session)

func (c SessionChange) apply(m *mutation) {
	c(&m.sess)
}

type mutation struct {
	prefs        Preferences
	sess         Session
	prefsTouched bool
	topNTouched  bool
}

// topNChange is a PreferenceChange that also requests normalization.
type topNChange struct {
	value int
}

func (c topNChange) apply(m *mutation) {
	m.prefs.TopN = c.value
	m.prefsTouched = true
	m.topNTouched = true
}

// SetAPIBase sets the backend base URL preference.
func SetAPIBase(base string) PreferenceChange {
	return func(p *Preferences) { p.APIBase = strings.TrimRight(strings.TrimSpace(base), "/") }
}

// SetSection sets the report section filter.
func SetSection(section string) PreferenceChange {
	return func(p *Preferences) { p.Section = section }
}

// SetWeek sets the selected ISO week, e.g. "2026-W05". Empty means latest.
func SetWeek(week string) PreferenceChange {
	return func(p *Preferences) { p.Week = week }
}

// SetViewMode sets battalion or platoon scope. Unknown modes fall back to battalion.
func SetViewMode(mode ViewMode) PreferenceChange {
	return func(p *Preferences) {
		if !mode.Valid() {
			mode = ViewBattalion
		}
		p.ViewMode = mode
	}
}

// SetTopN sets the top-N limit from user input. Non-numeric and
// non-positive input becomes DefaultTopN.
func SetTopN(raw string) Change {
	return topNChange{value: parseTopN(raw)}
}

// SetTopNValue sets the top-N limit. Non-positive values become DefaultTopN.
func SetTopNValue(n int) Change {
	return topNChange{value: n}
}

// SetActiveTab selects the visible dashboard tab.
func SetActiveTab(tab string) SessionChange {
	return func(s *Session) { s.ActiveTab = tab }
}

// SetPlatoon selects the platoon in view.
func SetPlatoon(platoon string) SessionChange {
	return func(s *Session) { s.Platoon = platoon }
}

func parseTopN(raw string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

func normalizeTopN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}
