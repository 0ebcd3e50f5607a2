package artifact

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/impact"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/version"
)

const topChangeLimit = 10

func writeContextTable(doc *strings.Builder, rep *report.ImpactReport) {
	doc.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(doc, "| Repository | %s |\n", rep.Context.Repository)
	fmt.Fprintf(doc, "| Branch | %s |\n", rep.Context.Branch)
	fmt.Fprintf(doc, "| Commit | `%s` |\n", rep.ShortSHA())
	fmt.Fprintf(doc, "| Author | %s |\n", rep.Context.Author)
	fmt.Fprintf(doc, "| Committed | %s |\n", rep.Context.CommitTimestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(doc, "| Generator | %s %s |\n", version.Tool, rep.Meta.ToolVersion)
}

func renderSummary(rep *report.ImpactReport, drift *report.DriftReport) []byte {
	var doc strings.Builder
	fmt.Fprintf(&doc, "# Documentation Update for `%s`\n\n", rep.ShortSHA())
	writeContextTable(&doc, rep)

	doc.WriteString("\n## Impact\n\n")
	fmt.Fprintf(&doc, "Highest severity: **%s** across %d changed file(s).\n", rep.Summary.HighestSeverity, rep.Summary.FileCount)
	if rep.Summary.BreakingChanges {
		doc.WriteString("\n**Breaking changes detected.** Review the ADR in `docs/adr/` before merging.\n")
	}

	top := impact.TopChanges(rep, topChangeLimit)
	if len(top) > 0 {
		doc.WriteString("\n## Top Changes\n\n")
		doc.WriteString("| Severity | Change | File |\n|---|---|---|\n")
		for _, c := range top {
			fmt.Fprintf(&doc, "| %s | %s | `%s` |\n", c.Severity, c.Kind, c.Path)
		}
	}

	doc.WriteString("\n## Documentation Drift\n\n")
	if len(drift.Issues) == 0 {
		doc.WriteString("No drift detected against the previously stored documentation.\n")
	} else {
		sorted := report.DriftReport{Issues: append([]report.DriftIssue(nil), drift.Issues...)}
		sorted.Sort()
		for _, issue := range sorted.Issues {
			fmt.Fprintf(&doc, "- **%s** %s: %s (`%s`)\n", issue.Severity, issue.Kind, issue.Description, issue.Path)
		}
	}
	return finishDoc(&doc)
}

func renderReadme(rep *report.ImpactReport) []byte {
	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s — Generated Documentation\n\n", rep.Context.Repository)
	doc.WriteString("This documentation set was generated from the source tree; do not edit by hand.\n\n")
	writeContextTable(&doc, rep)

	counts := map[string]int{}
	for _, c := range rep.Changes {
		counts[c.Language]++
	}
	if len(counts) > 0 {
		langs := make([]string, 0, len(counts))
		for lang := range counts {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		doc.WriteString("\n## Changed Files by Language\n\n")
		doc.WriteString("| Language | Files |\n|---|---|\n")
		for _, lang := range langs {
			fmt.Fprintf(&doc, "| %s | %d |\n", lang, counts[lang])
		}
	}

	doc.WriteString("\n## Impact\n\n")
	fmt.Fprintf(&doc, "Highest severity **%s**; breaking changes: %s.\n",
		rep.Summary.HighestSeverity, yesNo(rep.Summary.BreakingChanges))

	doc.WriteString("\n## Contents\n\n")
	doc.WriteString("- [API Reference](api/api-reference.md)\n")
	doc.WriteString("- [Architecture Overview](architecture/overview.md)\n")
	if rep.Summary.BreakingChanges {
		fmt.Fprintf(&doc, "- [Breaking Changes ADR](adr/ADR-%s-breaking-changes.md)\n", rep.ShortSHA())
	}
	return finishDoc(&doc)
}

func renderArchitecture(rep *report.ImpactReport) []byte {
	var doc strings.Builder
	doc.WriteString("# Architecture Overview\n\n")
	fmt.Fprintf(&doc, "Derived from the change set of commit `%s`.\n", rep.ShortSHA())

	// Group changed files by their top-level directory.
	type dirInfo struct {
		files int
		langs map[string]bool
	}
	dirs := map[string]*dirInfo{}
	for _, c := range rep.Changes {
		dir := topDir(c.Path)
		info := dirs[dir]
		if info == nil {
			info = &dirInfo{langs: map[string]bool{}}
			dirs[dir] = info
		}
		info.files++
		info.langs[c.Language] = true
	}
	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		doc.WriteString("\n## Touched Areas\n")
		for _, name := range names {
			info := dirs[name]
			langs := make([]string, 0, len(info.langs))
			for lang := range info.langs {
				langs = append(langs, lang)
			}
			sort.Strings(langs)
			fmt.Fprintf(&doc, "\n### `%s/`\n\n%d file(s) changed; languages: %s.\n",
				name, info.files, strings.Join(langs, ", "))
		}
	}
	return finishDoc(&doc)
}

func renderADR(rep *report.ImpactReport) []byte {
	var doc strings.Builder
	fmt.Fprintf(&doc, "# ADR %s: Breaking Changes\n\n", rep.ShortSHA())
	doc.WriteString("## Status\n\nRecorded automatically; awaiting review.\n\n")
	doc.WriteString("## Context\n\n")
	fmt.Fprintf(&doc, "Commit `%s` on `%s` removes or reshapes public surface:\n\n",
		rep.ShortSHA(), rep.Context.Branch)
	for _, c := range impact.TopChanges(rep, 0) {
		if c.Severity != report.SeverityMajor {
			continue
		}
		fmt.Fprintf(&doc, "- `%s` (%s)\n", c.Path, c.Kind)
	}
	doc.WriteString("\n## Consequences\n\n")
	doc.WriteString("Consumers of the removed endpoints, symbols, or schema fields must migrate before upgrading.\n")
	return finishDoc(&doc)
}

func topDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return "(root)"
	}
	if idx := strings.IndexByte(dir, '/'); idx > 0 {
		return dir[:idx]
	}
	return dir
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
