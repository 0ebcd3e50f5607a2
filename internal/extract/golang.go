package extract

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var (
	goFunc   = regexp.MustCompile(`^func\s+(\w+)\s*\(`)
	goMethod = regexp.MustCompile(`^func\s+\([^)]+\)\s+(\w+)\s*\(`)
	goType   = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface)\b`)

	// Method-pattern mux (Go 1.22) and chi/gin style registration.
	goMuxHandle  = regexp.MustCompile(`\.(?:HandleFunc|Handle)\(\s*"(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+([^"]+)"`)
	goVerbHandle = regexp.MustCompile(`\b\w+\.(Get|Post|Put|Delete|Patch|Head|Options|GET|POST|PUT|DELETE|PATCH)\(\s*"(/[^"]*)"`)
	goPathHandle = regexp.MustCompile(`\.(?:HandleFunc|Handle)\(\s*"(/[^"]*)"`)

	goStructField = regexp.MustCompile("^\\s*(\\w+)\\s+[\\w\\[\\]*.]+\\s+`[^`]*(?:db|gorm|bson):\"([^\",]+)")
)

func extractGo(text string) (report.Features, bool) {
	var f report.Features
	syntaxErr := !balancedDelimiters(text, "//")

	lines := splitLines(text)
	var schema *report.SchemaEntity
	structName := ""
	structLine := 0

	flushSchema := func() {
		if schema != nil && len(schema.Fields) > 0 {
			f.Schemas = append(f.Schemas, *schema)
		}
		schema = nil
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if m := goType.FindStringSubmatch(line); m != nil {
			flushSchema()
			f.Classes = append(f.Classes, report.Symbol{Name: m[1], Line: lineNo, Public: exportedName(m[1])})
			if m[2] == "struct" {
				structName, structLine = m[1], lineNo
				schema = &report.SchemaEntity{Name: structName, Line: structLine}
			}
			continue
		}
		if trimmed == "}" {
			flushSchema()
		}

		if m := goMethod.FindStringSubmatch(line); m != nil {
			f.Methods = append(f.Methods, report.Symbol{Name: m[1], Line: lineNo, Public: exportedName(m[1])})
			continue
		}
		if m := goFunc.FindStringSubmatch(line); m != nil {
			f.Functions = append(f.Functions, report.Symbol{Name: m[1], Line: lineNo, Public: exportedName(m[1])})
			continue
		}

		if m := goMuxHandle.FindStringSubmatch(line); m != nil {
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: m[1], Route: m[2], Line: lineNo})
			continue
		}
		if m := goVerbHandle.FindStringSubmatch(line); m != nil {
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: normalizeVerb(m[1]), Route: m[2], Line: lineNo})
			continue
		}
		if m := goPathHandle.FindStringSubmatch(line); m != nil {
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: "ANY", Route: m[1], Line: lineNo})
			continue
		}

		if schema != nil {
			if m := goStructField.FindStringSubmatch(line); m != nil {
				field := m[2]
				if field == "" || field == "-" {
					field = m[1]
				}
				schema.Fields = append(schema.Fields, field)
			}
		}
	}
	flushSchema()
	return f, syntaxErr
}
