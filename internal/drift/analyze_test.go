package drift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/detect"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

func freshReport() *report.ImpactReport {
	return &report.ImpactReport{
		Meta: report.Meta{ToolVersion: "v1.0.0"},
		Context: report.Context{
			Repository:      "acme/widgets",
			Branch:          "main",
			CommitSHA:       "abcdef1234567890abcdef1234567890abcdef12",
			CommitTimestamp: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		},
		Summary: report.AnalysisSummary{FileCount: 1, HighestSeverity: report.SeverityMinor},
		Changes: []report.FileChange{{
			Path: "src/api.py", Kind: report.ChangeModified, Language: detect.LangPython,
			Severity: report.SeverityMinor,
			Features: report.Features{
				APIEndpoints: []report.Endpoint{{Verb: "GET", Route: "/users", Line: 3}},
				Schemas:      []report.SchemaEntity{{Name: "User", Fields: []string{"id"}}},
			},
		}},
	}
}

func TestScanDoc(t *testing.T) {
	body := []byte(`# API Reference

## ` + "`src/api.py`" + `

### GET /users

Retrieves users.

### POST /users

## Data Model

### Entity User

- id
- email
`)
	facts := scanDoc(body)

	assert.True(t, facts.endpoints["GET /users"])
	assert.True(t, facts.endpoints["POST /users"])
	assert.Contains(t, facts.headings, "Data Model")
	require.Contains(t, facts.schemas, "User")
	assert.True(t, facts.schemas["User"]["email"])
}

func TestNoPreviousVersionMeansNoDrift(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Generate(rep, nil)
	out := Analyze(rep, fresh, nil)
	assert.Empty(t, out.Issues)
}

func TestStaleEndpointDetected(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Generate(rep, nil)
	prev := []StoredDoc{{
		Path: "docs/api/api-reference.md",
		Body: []byte("# API Reference\n\n### GET /users\n\n### DELETE /users/{id}\n"),
	}}

	out := Analyze(rep, fresh, prev)
	require.Len(t, out.Issues, 1)
	issue := out.Issues[0]
	assert.Equal(t, report.DriftStaleEndpoint, issue.Kind)
	assert.Equal(t, report.DriftHigh, issue.Severity)
	assert.Contains(t, issue.Description, "DELETE /users/{id}")
}

func TestSchemaDriftDetected(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Generate(rep, nil)
	prev := []StoredDoc{{
		Path: "docs/api/api-reference.md",
		Body: []byte("# API Reference\n\n### GET /users\n\n## Data Model\n\n### Entity User\n\n- id\n- email\n"),
	}}

	out := Analyze(rep, fresh, prev)
	require.Len(t, out.Issues, 1)
	issue := out.Issues[0]
	assert.Equal(t, report.DriftSchemaDrift, issue.Kind)
	assert.Equal(t, report.DriftMedium, issue.Severity)
	assert.Contains(t, issue.Description, "email")
}

func TestOutdatedSectionDetected(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Generate(rep, nil)
	prev := []StoredDoc{{
		Path: "docs/README.generated.md",
		Body: []byte("# Old\n\n## Impact\n\n## Deployment Guide\n\ntext\n"),
	}}

	out := Analyze(rep, fresh, prev)
	require.Len(t, out.Issues, 1)
	issue := out.Issues[0]
	assert.Equal(t, report.DriftOutdatedSection, issue.Kind)
	assert.Contains(t, issue.Description, "Deployment Guide")
}

func TestMissingDocForDegradedBundle(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Degraded(rep, assert.AnError)

	out := Analyze(rep, fresh, nil)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, report.DriftMissingDoc, out.Issues[0].Kind)
	assert.Equal(t, report.DriftLow, out.Issues[0].Severity)
	assert.Equal(t, "src/api.py", out.Issues[0].Path)
}

func TestIssuesSortedBySeverityThenDescription(t *testing.T) {
	rep := freshReport()
	fresh := artifact.Generate(rep, nil)
	prev := []StoredDoc{
		{
			Path: "docs/api/api-reference.md",
			Body: []byte("### GET /users\n\n### PUT /b\n\n### PUT /a\n\n## Data Model\n\n### Entity User\n\n- id\n- email\n"),
		},
	}

	out := Analyze(rep, fresh, prev)
	require.Len(t, out.Issues, 3)
	assert.Equal(t, report.DriftHigh, out.Issues[0].Severity)
	assert.Equal(t, report.DriftHigh, out.Issues[1].Severity)
	assert.Contains(t, out.Issues[0].Description, "PUT /a")
	assert.Contains(t, out.Issues[1].Description, "PUT /b")
	assert.Equal(t, report.DriftMedium, out.Issues[2].Severity)
}
