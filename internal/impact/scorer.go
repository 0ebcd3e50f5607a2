// Package impact rolls parsed changes up into per-file and repository-level
// severities. The rules are ordered MAJOR > MINOR > PATCH; the first rule
// that fires wins.
package impact

import (
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/detect"
	"git.home.luguber.info/inful/docdrift/internal/extract"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/version"
)

// Score builds the impact report for one commit from its parsed changes.
func Score(ctx report.Context, parsed []extract.ParsedChange) *report.ImpactReport {
	rep := &report.ImpactReport{
		Meta: report.Meta{
			ToolVersion: version.Version,
			GeneratedAt: ctx.CommitTimestamp.UTC().Format(time.RFC3339),
		},
		Context: ctx,
		Changes: make([]report.FileChange, 0, len(parsed)),
	}

	highest := report.SeverityPatch
	for _, pc := range parsed {
		sev := scoreFile(pc)
		highest = highest.Max(sev)
		rep.Changes = append(rep.Changes, report.FileChange{
			Path:        pc.Path,
			Kind:        pc.Kind,
			Language:    pc.Language,
			Severity:    sev,
			IsBinary:    pc.IsBinary,
			SyntaxError: pc.SyntaxError,
			Features:    pc.Current(),
		})
	}

	rep.Summary = report.AnalysisSummary{
		FileCount:       len(rep.Changes),
		HighestSeverity: highest,
		BreakingChanges: highest == report.SeverityMajor,
	}
	return rep
}

func scoreFile(pc extract.ParsedChange) report.Severity {
	if pc.IsBinary {
		return report.SeverityPatch
	}

	// MAJOR rules first.
	if pc.Kind == report.ChangeDeleted {
		if len(pc.Old.APIEndpoints) > 0 || hasPublicAPI(pc.Old) {
			return report.SeverityMajor
		}
		return report.SeverityPatch
	}
	if endpointRemoved(pc.Old, pc.New) {
		return report.SeverityMajor
	}
	if publicSymbolRemoved(pc.Old, pc.New) {
		return report.SeverityMajor
	}
	if schemaFieldDropped(pc.Old, pc.New) {
		return report.SeverityMajor
	}
	if hasDropColumn(pc.New) {
		return report.SeverityMajor
	}

	// MINOR rules.
	if pc.Kind == report.ChangeAdded {
		if detect.IsDocLanguage(pc.Language) {
			return report.SeverityPatch
		}
		return report.SeverityMinor
	}
	if endpointAdded(pc.Old, pc.New) || publicSymbolAdded(pc.Old, pc.New) || schemaFieldAdded(pc.Old, pc.New) {
		return report.SeverityMinor
	}

	// Body-only or comment-only modification.
	return report.SeverityPatch
}

// TopChanges returns up to limit files ordered by (severity desc, path asc),
// the stable presentation order for summaries.
func TopChanges(rep *report.ImpactReport, limit int) []report.FileChange {
	top := make([]report.FileChange, len(rep.Changes))
	copy(top, rep.Changes)
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Severity.Rank() != top[j].Severity.Rank() {
			return top[i].Severity.Rank() > top[j].Severity.Rank()
		}
		return top[i].Path < top[j].Path
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top
}

func endpointKey(e report.Endpoint) string { return e.Verb + " " + e.Route }

func endpointRemoved(old, cur report.Features) bool {
	if len(old.APIEndpoints) == 0 {
		return false
	}
	have := make(map[string]bool, len(cur.APIEndpoints))
	for _, e := range cur.APIEndpoints {
		have[endpointKey(e)] = true
	}
	for _, e := range old.APIEndpoints {
		if !have[endpointKey(e)] {
			// A removed (verb, route) pair covers both route deletion and
			// verb change.
			return true
		}
	}
	return false
}

func endpointAdded(old, cur report.Features) bool {
	had := make(map[string]bool, len(old.APIEndpoints))
	for _, e := range old.APIEndpoints {
		had[endpointKey(e)] = true
	}
	for _, e := range cur.APIEndpoints {
		if !had[endpointKey(e)] {
			return true
		}
	}
	return false
}

func publicNames(f report.Features) map[string]bool {
	names := make(map[string]bool)
	for _, s := range f.Functions {
		if s.Public {
			names["func:"+s.Name] = true
		}
	}
	for _, s := range f.Methods {
		if s.Public {
			names["method:"+s.Name] = true
		}
	}
	for _, s := range f.Classes {
		if s.Public {
			names["class:"+s.Name] = true
		}
	}
	return names
}

func hasPublicAPI(f report.Features) bool {
	return len(publicNames(f)) > 0 || len(f.Schemas) > 0
}

func publicSymbolRemoved(old, cur report.Features) bool {
	have := publicNames(cur)
	for name := range publicNames(old) {
		if !have[name] {
			return true
		}
	}
	return false
}

func publicSymbolAdded(old, cur report.Features) bool {
	had := publicNames(old)
	for name := range publicNames(cur) {
		if !had[name] {
			return true
		}
	}
	return false
}

func schemaFields(f report.Features) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, s := range f.Schemas {
		fields := out[s.Name]
		if fields == nil {
			fields = make(map[string]bool)
			out[s.Name] = fields
		}
		for _, field := range s.Fields {
			fields[field] = true
		}
	}
	return out
}

func schemaFieldDropped(old, cur report.Features) bool {
	have := schemaFields(cur)
	for entity, fields := range schemaFields(old) {
		curFields, ok := have[entity]
		if !ok {
			// Whole entity gone.
			return true
		}
		for field := range fields {
			if !curFields[field] {
				return true
			}
		}
	}
	return false
}

func schemaFieldAdded(old, cur report.Features) bool {
	had := schemaFields(old)
	for entity, fields := range schemaFields(cur) {
		oldFields := had[entity]
		for field := range fields {
			if oldFields == nil || !oldFields[field] {
				return true
			}
		}
	}
	return false
}

// hasDropColumn catches SQL migrations whose new text drops a column; the
// dropped column never appears in the feature set itself.
func hasDropColumn(f report.Features) bool {
	for _, a := range f.Annotations {
		if strings.HasPrefix(a, "drop_column:") {
			return true
		}
	}
	return false
}
