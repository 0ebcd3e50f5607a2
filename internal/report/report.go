// Package report defines the impact and drift report types exchanged between
// pipeline stages. The JSON shape of ImpactReport is a stable interchange
// format; field names must not change.
package report

import "time"

// Severity classifies the impact of a change, semver style.
type Severity string

const (
	SeverityPatch Severity = "PATCH"
	SeverityMinor Severity = "MINOR"
	SeverityMajor Severity = "MAJOR"
)

// Rank orders severities for comparison (higher is more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// ChangeKind classifies a per-file change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeDeleted  ChangeKind = "DELETED"
)

// Endpoint is one HTTP route extracted from source.
type Endpoint struct {
	Verb  string `json:"verb"`
	Route string `json:"route"`
	Line  int    `json:"line"`
}

// SchemaEntity is an extracted data model declaration (ORM entity, SQL
// table, document schema) with its field names.
type SchemaEntity struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Line   int      `json:"line"`
}

// Symbol is a named declaration with its source line.
type Symbol struct {
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Public bool   `json:"public"`
}

// Features is the structured extraction result for one file.
type Features struct {
	Classes      []Symbol       `json:"classes"`
	Methods      []Symbol       `json:"methods"`
	Functions    []Symbol       `json:"functions"`
	Annotations  []string       `json:"annotations"`
	APIEndpoints []Endpoint     `json:"api_endpoints"`
	Schemas      []SchemaEntity `json:"schemas"`
}

// Empty reports whether no features were extracted.
func (f Features) Empty() bool {
	return len(f.Classes) == 0 && len(f.Methods) == 0 && len(f.Functions) == 0 &&
		len(f.Annotations) == 0 && len(f.APIEndpoints) == 0 && len(f.Schemas) == 0
}

// FileChange is one per-file record in the impact report.
type FileChange struct {
	Path        string     `json:"path"`
	Kind        ChangeKind `json:"change_kind"`
	Language    string     `json:"language"`
	Severity    Severity   `json:"severity"`
	IsBinary    bool       `json:"is_binary"`
	SyntaxError bool       `json:"syntax_error"`
	Features    Features   `json:"features"`
}

// Meta identifies the generating tool.
type Meta struct {
	ToolVersion string `json:"tool_version"`
	GeneratedAt string `json:"generated_at"` // commit timestamp, RFC 3339; never wall clock
}

// Context carries the commit identity the report describes.
type Context struct {
	Repository      string    `json:"repository"`
	Branch          string    `json:"branch"`
	CommitSHA       string    `json:"commit_sha"`
	Author          string    `json:"author"`
	CommitMessage   string    `json:"commit_message"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
}

// AnalysisSummary rolls the per-file records up to repository level.
type AnalysisSummary struct {
	FileCount       int      `json:"file_count"`
	HighestSeverity Severity `json:"highest_severity"`
	BreakingChanges bool     `json:"breaking_changes_detected"`
}

// ImpactReport is the full structured diff description for one commit.
type ImpactReport struct {
	Meta    Meta            `json:"meta"`
	Context Context         `json:"context"`
	Summary AnalysisSummary `json:"analysis_summary"`
	Changes []FileChange    `json:"changes"`
}

// ShortSHA returns the 7-character short form of the commit identifier.
func (r *ImpactReport) ShortSHA() string {
	return ShortSHA(r.Context.CommitSHA)
}

// ShortSHA shortens a commit identifier to its 7-character form.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
