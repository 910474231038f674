package sdk

import "io"

// Row is one record of a tabular or status query. The backend owns the column set.
type Row map[string]any

// Health is the response of GET /health.
type Health struct {
	Version string `json:"version"`
}

// SyncFileStatus describes one synchronized source file.
type SyncFileStatus struct {
	Status   string  `json:"status"`
	LastSync *string `json:"last_sync"`
	Source   string  `json:"source"`
	ETag     string  `json:"etag"`
}

// SyncStatus is the response of GET /sync/status.
type SyncStatus struct {
	Enabled bool                      `json:"enabled"`
	Files   map[string]SyncFileStatus `json:"files"`
}

// SyncCounts reports what a synchronization wrote for one target.
type SyncCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// SyncResult maps each synchronized target to its counts.
type SyncResult map[string]SyncCounts

// ImportResult is the response of POST /imports/{kind}.
type ImportResult struct {
	Inserted int `json:"inserted"`
}

// SummaryMode selects the scope of a forms summary.
type SummaryMode string

const (
	SummaryBattalion SummaryMode = "battalion"
	SummaryPlatoon   SummaryMode = "platoon"
)

// FormsSummaryInput are the parameters of GET /queries/forms/summary.
type FormsSummaryInput struct {
	Mode    SummaryMode
	Week    string
	Platoon string
}

// FormsSummary is the battalion or platoon summary tree.
type FormsSummary struct {
	Mode     string                    `json:"mode"`
	Week     string                    `json:"week"`
	Platoon  string                    `json:"platoon,omitempty"`
	Summary  map[string]any            `json:"summary"`
	Platoons map[string]map[string]any `json:"platoons,omitempty"`
}

// PlatoonCoverage reports how completely a platoon reported in a week.
type PlatoonCoverage struct {
	Forms         int     `json:"forms"`
	DistinctTanks int     `json:"distinct_tanks"`
	ExpectedTanks int     `json:"expected_tanks"`
	LastSeen      *string `json:"last_seen"`
}

// CoverageAnomaly flags a platoon whose reporting looks wrong.
type CoverageAnomaly struct {
	Platoon  string `json:"platoon"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

// Coverage is the response of GET /queries/forms/coverage.
type Coverage struct {
	Week      string                     `json:"week"`
	Platoons  map[string]PlatoonCoverage `json:"platoons"`
	Anomalies []CoverageAnomaly          `json:"anomalies"`
}

// FormsStatus is the response of GET /queries/forms/status.
type FormsStatus struct {
	OK   []Row `json:"ok"`
	Gaps []Row `json:"gaps"`
}

// TabularKind names one of the tabular query endpoints.
type TabularKind string

const (
	TabularTotals   TabularKind = "totals"
	TabularGaps     TabularKind = "gaps"
	TabularDelta    TabularKind = "delta"
	TabularVariance TabularKind = "variance"
)

// TabularKinds lists every tabular endpoint in display order.
var TabularKinds = []TabularKind{TabularTotals, TabularGaps, TabularDelta, TabularVariance}

// QueryScope are the shared filters of tabular, trend and insight queries.
type QueryScope struct {
	Section string
	TopN    int
	Platoon string
	Week    string
}

// Insights is the response of GET /insights.
type Insights struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Cached  bool   `json:"cached"`
}

// ExportKind selects the spreadsheet export.
type ExportKind string

const (
	ExportBattalion ExportKind = "battalion"
	ExportPlatoon   ExportKind = "platoon"
)

// ExportInput are the parameters of GET /exports/{kind}.
type ExportInput struct {
	Kind    ExportKind
	Week    string
	Platoon string
}

// ExportStream is an open spreadsheet download. Close must be called.
type ExportStream struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// Close releases the underlying response body.
func (e *ExportStream) Close() error {
	return e.Body.Close()
}
