package extract

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var (
	jsFunction = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`)
	jsArrow    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`)
	jsClass    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	jsDecor    = regexp.MustCompile(`^\s*@(\w+)`)

	// Middleware-chain routing: router.get('/x', ...), app.post("/x", ...).
	jsRoute = regexp.MustCompile(`\b(?:router|app|server|api|r)\.(get|post|put|delete|patch|head|options|all)\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)

	// Schemas: mongoose new Schema({...}) and sequelize define('X', {...}).
	jsMongoose  = regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=\s*new\s+(?:mongoose\.)?Schema\s*\(\s*\{`)
	jsSequelize = regexp.MustCompile(`\.define\s*\(\s*['"](\w+)['"]\s*,\s*\{`)
	jsField     = regexp.MustCompile(`^\s*(\w+)\s*:`)
)

func extractJavaScript(text string) (report.Features, bool) {
	var f report.Features
	syntaxErr := !balancedDelimiters(text, "//")

	lines := splitLines(text)
	var schema *report.SchemaEntity
	schemaDepth := 0

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if schema != nil {
			if m := jsField.FindStringSubmatch(line); m != nil && schemaDepth == 1 {
				schema.Fields = append(schema.Fields, m[1])
			}
			schemaDepth += strings.Count(line, "{") - strings.Count(line, "}")
			if schemaDepth <= 0 {
				f.Schemas = append(f.Schemas, *schema)
				schema = nil
			}
			continue
		}

		if m := jsMongoose.FindStringSubmatch(line); m != nil {
			schema = &report.SchemaEntity{Name: m[1], Line: lineNo}
			schemaDepth = 1
			continue
		}
		if m := jsSequelize.FindStringSubmatch(line); m != nil {
			schema = &report.SchemaEntity{Name: m[1], Line: lineNo}
			schemaDepth = 1
			continue
		}

		for _, m := range jsRoute.FindAllStringSubmatch(line, -1) {
			verb := normalizeVerb(m[1])
			if verb == "ALL" {
				verb = "ANY"
			}
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: verb, Route: m[2], Line: lineNo})
		}

		if m := jsClass.FindStringSubmatch(line); m != nil {
			f.Classes = append(f.Classes, report.Symbol{Name: m[1], Line: lineNo, Public: isJSExported(line)})
			continue
		}
		if m := jsFunction.FindStringSubmatch(line); m != nil {
			f.Functions = append(f.Functions, report.Symbol{Name: m[1], Line: lineNo, Public: isJSExported(line)})
			continue
		}
		if m := jsArrow.FindStringSubmatch(line); m != nil {
			f.Functions = append(f.Functions, report.Symbol{Name: m[1], Line: lineNo, Public: isJSExported(line)})
			continue
		}
		if m := jsDecor.FindStringSubmatch(line); m != nil {
			f.Annotations = append(f.Annotations, m[1])
		}
	}
	if schema != nil {
		f.Schemas = append(f.Schemas, *schema)
	}
	return f, syntaxErr
}

// isJSExported treats explicit export and CommonJS-style top-level decls as
// public. Without module analysis this is a convention call: anything not
// nested is reachable via module.exports often enough to count.
func isJSExported(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "export") {
		return true
	}
	// Top-level (unindented) declarations count as public surface.
	return line == trimmed
}
