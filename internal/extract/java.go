package extract

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var (
	javaType   = regexp.MustCompile(`^\s*(?:public\s+|protected\s+|private\s+|final\s+|abstract\s+|static\s+)*(class|interface|enum|record)\s+(\w+)`)
	javaMethod = regexp.MustCompile(`^\s*(public|protected|private)\s+(?:static\s+|final\s+|synchronized\s+|abstract\s+)*[\w<>\[\],.?]+\s+(\w+)\s*\(`)
	javaAnnot  = regexp.MustCompile(`^\s*@(\w+)`)
	javaField  = regexp.MustCompile(`^\s*(?:private|protected|public)\s+(?:final\s+)?[\w<>\[\],. ]+\s+(\w+)\s*(?:=[^;]*)?;`)

	// Annotated-controller routing.
	javaVerbMapping    = regexp.MustCompile(`^\s*@(Get|Post|Put|Delete|Patch)Mapping\s*(?:\(\s*(?:value\s*=\s*)?"([^"]*)")?`)
	javaRequestMapping = regexp.MustCompile(`^\s*@RequestMapping\s*\(([^)]*)\)`)
	javaMappingValue   = regexp.MustCompile(`(?:value|path)\s*=\s*"([^"]*)"|^\s*"([^"]*)"`)
	javaMappingMethod  = regexp.MustCompile(`RequestMethod\.(\w+)`)
)

func extractJava(text string) (report.Features, bool) {
	var f report.Features
	syntaxErr := !balancedDelimiters(text, "//")

	lines := splitLines(text)
	entityPending := false
	var schema *report.SchemaEntity

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		if m := javaVerbMapping.FindStringSubmatch(line); m != nil {
			f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{
				Verb:  normalizeVerb(m[1]),
				Route: mappingRoute(m[2]),
				Line:  lineNo,
			})
			f.Annotations = append(f.Annotations, m[1]+"Mapping")
			continue
		}
		if m := javaRequestMapping.FindStringSubmatch(line); m != nil {
			args := m[1]
			route := ""
			if rv := javaMappingValue.FindStringSubmatch(args); rv != nil {
				if rv[1] != "" {
					route = rv[1]
				} else {
					route = rv[2]
				}
			}
			verb := "ANY"
			if mv := javaMappingMethod.FindStringSubmatch(args); mv != nil {
				verb = normalizeVerb(mv[1])
			}
			// Class-level @RequestMapping without a method is a prefix, not an
			// endpoint; only emit when a verb is present or a route is given
			// at method position. Prefix tracking is out of scope for a line
			// scanner, so a route-only mapping still records the route.
			if route != "" || verb != "ANY" {
				f.APIEndpoints = append(f.APIEndpoints, report.Endpoint{Verb: verb, Route: mappingRoute(route), Line: lineNo})
			}
			f.Annotations = append(f.Annotations, "RequestMapping")
			continue
		}

		if m := javaAnnot.FindStringSubmatch(line); m != nil {
			f.Annotations = append(f.Annotations, m[1])
			if m[1] == "Entity" || m[1] == "Table" || m[1] == "Document" {
				entityPending = true
			}
			continue
		}

		if m := javaType.FindStringSubmatch(line); m != nil {
			name := m[2]
			f.Classes = append(f.Classes, report.Symbol{Name: name, Line: lineNo, Public: strings.Contains(line, "public ")})
			if entityPending {
				if schema != nil {
					f.Schemas = append(f.Schemas, *schema)
				}
				schema = &report.SchemaEntity{Name: name, Line: lineNo}
				entityPending = false
			}
			continue
		}

		if schema != nil {
			if m := javaField.FindStringSubmatch(line); m != nil {
				schema.Fields = append(schema.Fields, m[1])
				continue
			}
		}

		if m := javaMethod.FindStringSubmatch(line); m != nil {
			f.Methods = append(f.Methods, report.Symbol{Name: m[2], Line: lineNo, Public: m[1] == "public"})
		}
	}
	if schema != nil {
		f.Schemas = append(f.Schemas, *schema)
	}
	return f, syntaxErr
}

func mappingRoute(route string) string {
	if route == "" {
		return "/"
	}
	return route
}
