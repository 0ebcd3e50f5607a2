// Package artifact renders the documentation bundle for one analyzed commit.
// Generation is a pure function of the impact report, the drift report, and
// the tool version: no wall clock, no environment, no randomness. Running it
// twice for the same commit yields byte-identical output.
package artifact

import (
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

// Store-relative paths of the fixed bundle members.
const (
	SummaryPath      = "summaries/summary.md"
	ReadmePath       = "docs/README.generated.md"
	APIReferencePath = "docs/api/api-reference.md"
	ArchitecturePath = "docs/architecture/overview.md"
)

// ADRPath returns the path of the breaking-change record for a commit.
func ADRPath(shortSHA string) string {
	return "docs/adr/ADR-" + shortSHA + "-breaking-changes.md"
}

// Bundle is the set of rendered artifacts, keyed by store-relative path.
type Bundle struct {
	Files    map[string][]byte
	Degraded bool
}

// Paths returns the bundle's member paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Summary returns the rendered summary body, the document reused verbatim as
// the pull request body at delivery.
func (b *Bundle) Summary() []byte {
	return b.Files[SummaryPath]
}

// Generate renders the full bundle. drift may be nil when no prior version
// existed to compare against.
func Generate(rep *report.ImpactReport, drift *report.DriftReport) *Bundle {
	if drift == nil {
		drift = &report.DriftReport{}
	}
	short := rep.ShortSHA()

	b := &Bundle{Files: map[string][]byte{
		SummaryPath:      renderSummary(rep, drift),
		ReadmePath:       renderReadme(rep),
		APIReferencePath: renderAPIReference(rep),
		ArchitecturePath: renderArchitecture(rep),
	}}
	if rep.Summary.BreakingChanges {
		b.Files[ADRPath(short)] = renderADR(rep)
	}
	return b
}

// Degraded renders the minimal fallback bundle used when generation fails
// mid-run. The run continues with this summary only.
func Degraded(rep *report.ImpactReport, genErr error) *Bundle {
	var doc strings.Builder
	doc.WriteString("# Generation Failed\n\n")
	fmt.Fprintf(&doc, "Documentation generation for commit `%s` did not complete.\n\n", rep.ShortSHA())
	fmt.Fprintf(&doc, "Error: %s\n", genErr.Error())
	return &Bundle{
		Files:    map[string][]byte{SummaryPath: finishDoc(&doc)},
		Degraded: true,
	}
}

// finishDoc normalizes a rendered document: LF line endings and exactly one
// trailing newline.
func finishDoc(doc *strings.Builder) []byte {
	text := strings.ReplaceAll(doc.String(), "\r\n", "\n")
	text = strings.TrimRight(text, "\n") + "\n"
	return []byte(text)
}
