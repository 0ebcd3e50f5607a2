// Package extract implements the per-language feature extractors. Each
// extractor is a line-oriented scanner producing functions, classes,
// annotations, HTTP endpoints, and schema declarations. Extractors are
// error-tolerant: a syntax failure returns whatever was recovered together
// with a flag, never an error, so a single broken file cannot abort a run.
// Given identical input bytes the output is byte-identical.
package extract

import (
	"git.home.luguber.info/inful/docdrift/internal/detect"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

// Extract dispatches to the language extractor. Unknown languages produce
// empty features and no syntax error.
func Extract(lang, path, text string) (report.Features, bool) {
	switch lang {
	case detect.LangPython:
		return extractPython(text)
	case detect.LangJavaScript, detect.LangTypeScript:
		return extractJavaScript(text)
	case detect.LangJava:
		return extractJava(text)
	case detect.LangGo:
		return extractGo(text)
	case detect.LangSQL:
		return extractSQL(text)
	default:
		return report.Features{}, false
	}
}

// ParsedChange pairs a detected change with the features extracted from both
// sides of the diff.
type ParsedChange struct {
	detect.Change
	Old         report.Features
	New         report.Features
	SyntaxError bool
}

// ParseChanges extracts features for every readable change. Binary files are
// passed through untouched.
func ParseChanges(changes []detect.Change) []ParsedChange {
	parsed := make([]ParsedChange, 0, len(changes))
	for _, c := range changes {
		pc := ParsedChange{Change: c}
		if c.SafeToRead {
			var oldErr, newErr bool
			if c.OldText != "" {
				pc.Old, oldErr = Extract(c.Language, c.Path, c.OldText)
			}
			if c.NewText != "" {
				pc.New, newErr = Extract(c.Language, c.Path, c.NewText)
			}
			pc.SyntaxError = oldErr || newErr
		}
		parsed = append(parsed, pc)
	}
	return parsed
}

// Current returns the feature set describing the file at the analyzed
// commit: the new side, or the old side for deletions.
func (p ParsedChange) Current() report.Features {
	if p.Kind == report.ChangeDeleted {
		return p.Old
	}
	return p.New
}
