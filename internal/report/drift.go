package report

import "sort"

// DriftKind classifies a documentation drift issue.
type DriftKind string

const (
	DriftStaleEndpoint   DriftKind = "STALE_ENDPOINT"
	DriftSchemaDrift     DriftKind = "SCHEMA_DRIFT"
	DriftOutdatedSection DriftKind = "OUTDATED_SECTION"
	DriftMissingDoc      DriftKind = "MISSING_DOC"
)

// DriftSeverity bands issues: high = removal, medium = field drift,
// low = missing prose.
type DriftSeverity string

const (
	DriftHigh   DriftSeverity = "high"
	DriftMedium DriftSeverity = "medium"
	DriftLow    DriftSeverity = "low"
)

// Rank orders drift severities (lower sorts first; high is most urgent).
func (s DriftSeverity) Rank() int {
	switch s {
	case DriftHigh:
		return 0
	case DriftMedium:
		return 1
	default:
		return 2
	}
}

// DriftIssue is one discrepancy between fresh and stored documentation.
type DriftIssue struct {
	Kind        DriftKind     `json:"kind"`
	Path        string        `json:"path"`
	Severity    DriftSeverity `json:"severity"`
	Description string        `json:"description"`
}

// DriftReport is the result of comparing a fresh artifact set against the
// previously stored one. An empty issue list means no drift (or no prior
// version to compare against).
type DriftReport struct {
	Issues []DriftIssue `json:"issues"`
}

// Sort orders issues by (severity, description) ascending. This is the
// explicit two-field sort used everywhere issues are presented.
func (r *DriftReport) Sort() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		return a.Description < b.Description
	})
}
