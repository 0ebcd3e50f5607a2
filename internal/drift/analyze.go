// Package drift compares a freshly generated documentation bundle against
// the previously stored artifact set and reports discrepancies. No prior
// version means no drift: the report comes back empty.
package drift

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

// StoredDoc is one markdown artifact from the previously stored version.
type StoredDoc struct {
	Path string
	Body []byte
}

// Analyze scans both artifact sets and emits the drift issues, sorted by
// (severity, description).
func Analyze(rep *report.ImpactReport, fresh *artifact.Bundle, previous []StoredDoc) *report.DriftReport {
	out := &report.DriftReport{Issues: []report.DriftIssue{}}
	if fresh == nil {
		return out
	}

	freshAPI := scanDoc(fresh.Files[artifact.APIReferencePath])
	freshReadme := scanDoc(fresh.Files[artifact.ReadmePath])

	for _, doc := range previous {
		switch {
		case strings.HasSuffix(doc.Path, "api-reference.md"):
			prev := scanDoc(doc.Body)
			out.Issues = append(out.Issues, staleEndpoints(doc.Path, prev, freshAPI)...)
			out.Issues = append(out.Issues, schemaDrift(doc.Path, prev, freshAPI)...)
		case strings.HasSuffix(doc.Path, "README.generated.md"):
			prev := scanDoc(doc.Body)
			out.Issues = append(out.Issues, outdatedSections(doc.Path, prev, freshReadme)...)
		}
	}

	out.Issues = append(out.Issues, missingDocs(rep, fresh)...)
	out.Sort()
	return out
}

// staleEndpoints flags endpoints the stored docs describe that the fresh
// reference no longer contains.
func staleEndpoints(path string, prev, fresh docFacts) []report.DriftIssue {
	var issues []report.DriftIssue
	for ep := range prev.endpoints {
		if !fresh.endpoints[ep] {
			issues = append(issues, report.DriftIssue{
				Kind:        report.DriftStaleEndpoint,
				Path:        path,
				Severity:    report.DriftHigh,
				Description: fmt.Sprintf("documented endpoint %s no longer exists", ep),
			})
		}
	}
	return issues
}

func schemaDrift(path string, prev, fresh docFacts) []report.DriftIssue {
	var issues []report.DriftIssue
	for entity, fields := range prev.schemas {
		freshFields, ok := fresh.schemas[entity]
		if !ok {
			// The whole entity left the docs; stale-endpoint style removal is
			// covered by the heading diff, so skip silently.
			continue
		}
		for field := range fields {
			if !freshFields[field] {
				issues = append(issues, report.DriftIssue{
					Kind:        report.DriftSchemaDrift,
					Path:        path,
					Severity:    report.DriftMedium,
					Description: fmt.Sprintf("entity %s lost documented field %s", entity, field),
				})
			}
		}
	}
	return issues
}

func outdatedSections(path string, prev, fresh docFacts) []report.DriftIssue {
	have := map[string]bool{}
	for _, h := range fresh.headings {
		have[h] = true
	}
	var issues []report.DriftIssue
	for _, h := range prev.headings {
		if !have[h] {
			issues = append(issues, report.DriftIssue{
				Kind:        report.DriftOutdatedSection,
				Path:        path,
				Severity:    report.DriftMedium,
				Description: fmt.Sprintf("section %q is no longer present", h),
			})
		}
	}
	return issues
}

// missingDocs flags endpoints the analyzer extracted that no fresh artifact
// body mentions at all.
func missingDocs(rep *report.ImpactReport, fresh *artifact.Bundle) []report.DriftIssue {
	var issues []report.DriftIssue
	for _, c := range rep.Changes {
		if c.Kind == report.ChangeDeleted {
			continue
		}
		for _, ep := range c.Features.APIEndpoints {
			needle := ep.Verb + " " + ep.Route
			if !mentioned(fresh, needle) {
				issues = append(issues, report.DriftIssue{
					Kind:        report.DriftMissingDoc,
					Path:        c.Path,
					Severity:    report.DriftLow,
					Description: fmt.Sprintf("endpoint %s is not documented", needle),
				})
			}
		}
	}
	return issues
}

func mentioned(fresh *artifact.Bundle, needle string) bool {
	for _, body := range fresh.Files {
		if strings.Contains(string(body), needle) {
			return true
		}
	}
	return false
}
