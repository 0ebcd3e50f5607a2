package extract

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var (
	sqlCreateTable = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?["'` + "`" + `]?([\w.]+)["'` + "`" + `]?\s*\(?`)
	sqlAlterAdd    = regexp.MustCompile(`(?i)^\s*ALTER\s+TABLE\s+["'` + "`" + `]?([\w.]+)["'` + "`" + `]?\s+ADD\s+(?:COLUMN\s+)?["'` + "`" + `]?(\w+)`)
	sqlAlterDrop   = regexp.MustCompile(`(?i)^\s*ALTER\s+TABLE\s+["'` + "`" + `]?([\w.]+)["'` + "`" + `]?\s+DROP\s+(?:COLUMN\s+)?["'` + "`" + `]?(\w+)`)
	sqlColumn      = regexp.MustCompile("^\\s*[\"'`]?(\\w+)[\"'`]?\\s+\\w+")
)

var sqlConstraintWords = map[string]bool{
	"primary": true, "foreign": true, "unique": true, "constraint": true,
	"check": true, "index": true, "key": true,
}

func extractSQL(text string) (report.Features, bool) {
	var f report.Features

	lines := splitLines(text)
	var table *report.SchemaEntity

	flush := func() {
		if table != nil {
			f.Schemas = append(f.Schemas, *table)
			table = nil
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if m := sqlCreateTable.FindStringSubmatch(line); m != nil {
			flush()
			table = &report.SchemaEntity{Name: m[1], Line: lineNo}
			continue
		}
		if m := sqlAlterAdd.FindStringSubmatch(line); m != nil {
			f.Schemas = append(f.Schemas, report.SchemaEntity{Name: m[1], Fields: []string{m[2]}, Line: lineNo})
			f.Annotations = append(f.Annotations, "add_column:"+m[1]+"."+m[2])
			continue
		}
		if m := sqlAlterDrop.FindStringSubmatch(line); m != nil {
			// Recorded as an annotation so the scorer can flag the drop even
			// though a dropped column has no place in the feature set.
			f.Annotations = append(f.Annotations, "drop_column:"+m[1]+"."+m[2])
			continue
		}

		if table != nil {
			if strings.HasPrefix(trimmed, ")") {
				flush()
				continue
			}
			if m := sqlColumn.FindStringSubmatch(line); m != nil {
				if !sqlConstraintWords[strings.ToLower(m[1])] {
					table.Fields = append(table.Fields, m[1])
				}
			}
		}
	}
	flush()

	// DDL is tolerant by construction; nothing here distinguishes a syntax
	// failure from prose, so SQL never reports one.
	return f, false
}
