package artifact

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/detect"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

func sampleReport() *report.ImpactReport {
	return &report.ImpactReport{
		Meta: report.Meta{ToolVersion: "v1.2.3", GeneratedAt: "2024-05-01T12:00:00Z"},
		Context: report.Context{
			Repository:      "acme/widgets",
			Branch:          "main",
			CommitSHA:       "0123456789abcdef0123456789abcdef01234567",
			Author:          "dev@acme.test",
			CommitMessage:   "feat: users api",
			CommitTimestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Summary: report.AnalysisSummary{FileCount: 2, HighestSeverity: report.SeverityMajor, BreakingChanges: true},
		Changes: []report.FileChange{
			{
				Path: "src/api/users.py", Kind: report.ChangeModified,
				Language: detect.LangPython, Severity: report.SeverityMajor,
				Features: report.Features{APIEndpoints: []report.Endpoint{
					{Verb: "POST", Route: "/users", Line: 10},
					{Verb: "GET", Route: "/users/{user_id}", Line: 4},
				}},
			},
			{
				Path: "README.md", Kind: report.ChangeModified,
				Language: detect.LangMarkdown, Severity: report.SeverityPatch,
			},
		},
	}
}

func sampleDrift() *report.DriftReport {
	return &report.DriftReport{Issues: []report.DriftIssue{
		{Kind: report.DriftMissingDoc, Path: "src/api/users.py", Severity: report.DriftLow, Description: "endpoint POST /users is undocumented"},
		{Kind: report.DriftStaleEndpoint, Path: "docs/api/api-reference.md", Severity: report.DriftHigh, Description: "endpoint DELETE /users/{user_id} no longer exists"},
	}}
}

func TestGenerateBundleMembers(t *testing.T) {
	b := Generate(sampleReport(), sampleDrift())

	assert.Equal(t, []string{
		ADRPath("0123456"),
		APIReferencePath,
		ArchitecturePath,
		ReadmePath,
		SummaryPath,
	}, b.Paths())
	assert.False(t, b.Degraded)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(sampleReport(), sampleDrift())
	b := Generate(sampleReport(), sampleDrift())
	require.Equal(t, a.Paths(), b.Paths())
	for _, p := range a.Paths() {
		assert.Equal(t, a.Files[p], b.Files[p], p)
	}
}

func TestArtifactsAreNormalized(t *testing.T) {
	b := Generate(sampleReport(), sampleDrift())
	for _, p := range b.Paths() {
		text := string(b.Files[p])
		assert.NotContains(t, text, "\r", p)
		assert.True(t, strings.HasSuffix(text, "\n"), "%s must end with a newline", p)
		assert.False(t, strings.HasSuffix(text, "\n\n"), "%s must end with exactly one newline", p)
	}
}

func TestSummaryContent(t *testing.T) {
	summary := string(Generate(sampleReport(), sampleDrift()).Summary())

	assert.Contains(t, summary, "`0123456`")
	assert.Contains(t, summary, "**MAJOR**")
	assert.Contains(t, summary, "Breaking changes detected")
	// Drift issues ordered high before low regardless of input order.
	high := strings.Index(summary, "STALE_ENDPOINT")
	low := strings.Index(summary, "MISSING_DOC")
	require.Greater(t, high, 0)
	require.Greater(t, low, 0)
	assert.Less(t, high, low)
	// No wall clock: the only timestamp is the commit's.
	assert.Contains(t, summary, "2024-05-01T12:00:00Z")
}

func TestSummaryWithoutDrift(t *testing.T) {
	summary := string(Generate(sampleReport(), nil).Summary())
	assert.Contains(t, summary, "No drift detected")
}

func TestAPIReferenceOrdering(t *testing.T) {
	text := string(Generate(sampleReport(), nil).Files[APIReferencePath])

	// Within a file, endpoints sort (verb, route): GET before POST.
	get := strings.Index(text, "### GET /users/{user_id}")
	post := strings.Index(text, "### POST /users")
	require.Greater(t, get, 0)
	require.Greater(t, post, 0)
	assert.Less(t, get, post)

	assert.Contains(t, text, "Path parameters: `user_id`")
	assert.Contains(t, text, "curl 'https://api.example.com/users/1'")
	assert.Contains(t, text, "curl -X POST 'https://api.example.com/users'")
}

func TestAPIReferenceDataModel(t *testing.T) {
	rep := sampleReport()
	rep.Changes[0].Features.Schemas = []report.SchemaEntity{
		{Name: "User", Fields: []string{"id", "email", "id"}},
	}
	text := string(Generate(rep, nil).Files[APIReferencePath])
	assert.Contains(t, text, "### Entity User")
	assert.Contains(t, text, "- email\n- id\n")
}

func TestAPIReferenceSkipsDeletedFiles(t *testing.T) {
	rep := sampleReport()
	rep.Changes[0].Kind = report.ChangeDeleted
	text := string(Generate(rep, nil).Files[APIReferencePath])
	assert.Contains(t, text, "No HTTP endpoints were detected")
}

func TestADROnlyWhenBreaking(t *testing.T) {
	rep := sampleReport()
	rep.Summary.BreakingChanges = false
	rep.Summary.HighestSeverity = report.SeverityMinor
	b := Generate(rep, nil)
	_, ok := b.Files[ADRPath("0123456")]
	assert.False(t, ok)
}

func TestADRListsMajorFiles(t *testing.T) {
	text := string(Generate(sampleReport(), nil).Files[ADRPath("0123456")])
	assert.Contains(t, text, "`src/api/users.py` (MODIFIED)")
	assert.NotContains(t, text, "README.md")
}

func TestDegradedBundle(t *testing.T) {
	b := Degraded(sampleReport(), errors.New("template expansion failed"))
	require.True(t, b.Degraded)
	require.Equal(t, []string{SummaryPath}, b.Paths())
	text := string(b.Summary())
	assert.True(t, strings.HasPrefix(text, "# Generation Failed\n"))
	assert.Contains(t, text, "template expansion failed")
}
