package query

import "time"

// Resource names used in cache keys.
const (
	ResourceHealth        = "health"
	ResourceSyncStatus    = "sync-status"
	ResourceSummary       = "summary"
	ResourceCoverage      = "coverage"
	ResourceTankMetrics   = "tank-metrics"
	ResourceIntelligence  = "intelligence"
	ResourceTabularBundle = "tabular-bundle"
	ResourceSearch        = "search"
)

// SyncStatusRefetchInterval is the background refresh period of sync-status.
const SyncStatusRefetchInterval = 30 * time.Second

var staleTimes = map[string]time.Duration{
	ResourceHealth:        60 * time.Second,
	ResourceSyncStatus:    15 * time.Second,
	ResourceSummary:       10 * time.Second,
	ResourceCoverage:      10 * time.Second,
	ResourceTankMetrics:   10 * time.Second,
	ResourceIntelligence:  10 * time.Second,
	ResourceTabularBundle: 5 * time.Second,
	ResourceSearch:        5 * time.Second,
}

// StaleTimeFor returns how long a value of resource is reused without a
// network call. Unknown resources are always stale.
func StaleTimeFor(resource string) time.Duration {
	return staleTimes[resource]
}
