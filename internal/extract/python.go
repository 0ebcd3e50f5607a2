package extract

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var (
	pyDef       = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	pyClass     = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	pyDecorator = regexp.MustCompile(`^\s*@([\w.]+)`)

	// Decorator-style routing: Flask @app.route("/x", methods=["GET"]) and
	// FastAPI/Flask-RESTful @router.get("/x").
	pyRouteCall  = regexp.MustCompile(`^\s*@[\w.]*\.route\(\s*['"]([^'"]+)['"](.*)\)`)
	pyVerbCall   = regexp.MustCompile(`^\s*@[\w.]+\.(get|post|put|delete|patch|head|options)\(\s*['"]([^'"]+)['"]`)
	pyMethodsArg = regexp.MustCompile(`methods\s*=\s*\[([^\]]*)\]`)
	pyMethodName = regexp.MustCompile(`['"](\w+)['"]`)

	// Schema markers: SQLAlchemy columns, Django model fields, pydantic
	// annotated fields.
	pySQLAColumn  = regexp.MustCompile(`^\s*(\w+)\s*(?::[^=]+)?=\s*(?:db\.)?Column\(`)
	pyDjangoField = regexp.MustCompile(`^\s*(\w+)\s*=\s*models\.\w+Field\(`)
	pyAnnotated   = regexp.MustCompile(`^\s*(\w+)\s*:\s*[\w\[\]., '"|]+(?:\s*=.*)?$`)
)

var pySchemaBases = []string{"Base", "BaseModel", "models.Model", "db.Model", "Document"}

func extractPython(text string) (report.Features, bool) {
	var f report.Features
	syntaxErr := !balancedDelimiters(text, "#")

	lines := splitLines(text)
	var schema *report.SchemaEntity
	schemaIndent := 0
	classIndents := []int{}

	flushSchema := func() {
		if schema != nil {
			f.Schemas = append(f.Schemas, *schema)
			schema = nil
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if schema != nil && trimmed != "" && indent <= schemaIndent {
			flushSchema()
		}
		for len(classIndents) > 0 && indent <= classIndents[len(classIndents)-1] {
			classIndents = classIndents[:len(classIndents)-1]
		}

		if m := pyClass.FindStringSubmatch(line); m != nil {
			name := m[2]
			f.Classes = append(f.Classes, report.Symbol{Name: name, Line: lineNo, Public: publicPyName(name)})
			if isPySchemaBase(m[3]) {
				schema = &report.SchemaEntity{Name: name, Line: lineNo}
				schemaIndent = indent
			}
			classIndents = append(classIndents, indent)
			continue
		}

		if m := pyDef.FindStringSubmatch(line); m != nil {
			sym := report.Symbol{Name: m[2], Line: lineNo, Public: publicPyName(m[2])}
			if len(classIndents) > 0 {
				f.Methods = append(f.Methods, sym)
			} else {
				f.Functions = append(f.Functions, sym)
			}
			continue
		}

		if m := pyRouteCall.FindStringSubmatch(line); m != nil {
			route, rest := m[1], m[2]
			verbs := []string{"GET"}
			if mm := pyMethodsArg.FindStringSubmatch(rest); mm != nil {
				verbs = nil
				for _, v := range pyMethodName.FindAllStringSubmatch(mm[1], -1) {
					verbs = append(verbs, normalizeVerb(v[1]))
				}
			}
			for _, verb := range verbs {
				f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: verb, Route: route, Line: lineNo})
			}
			f.Annotations = append(f.Annotations, decoratorName(line))
			continue
		}
		if m := pyVerbCall.FindStringSubmatch(line); m != nil {
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: normalizeVerb(m[1]), Route: m[2], Line: lineNo})
			f.Annotations = append(f.Annotations, decoratorName(line))
			continue
		}
		if m := pyDecorator.FindStringSubmatch(line); m != nil {
			f.Annotations = append(f.Annotations, m[1])
			continue
		}

		if schema != nil {
			if m := pySQLAColumn.FindStringSubmatch(line); m != nil {
				schema.Fields = append(schema.Fields, m[1])
			} else if m := pyDjangoField.FindStringSubmatch(line); m != nil {
				schema.Fields = append(schema.Fields, m[1])
			} else if m := pyAnnotated.FindStringSubmatch(line); m != nil && !strings.HasPrefix(trimmed, "def ") {
				schema.Fields = append(schema.Fields, m[1])
			}
		}
	}
	flushSchema()
	return f, syntaxErr
}

func isPySchemaBase(bases string) bool {
	for part := range strings.SplitSeq(bases, ",") {
		base := strings.TrimSpace(part)
		for _, known := range pySchemaBases {
			if base == known {
				return true
			}
		}
	}
	return false
}

func decoratorName(line string) string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "@")
	if idx := strings.IndexByte(trimmed, '('); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
