package artifact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/report"
)

var routeParam = regexp.MustCompile(`\{([\w:]+)\}|:(\w+)|<([\w:]+)>`)

// renderAPIReference lists the endpoints extracted from the commit's current
// tree, grouped by source file (path ascending) and sorted (verb, route)
// within each file. Deleted files contribute nothing.
func renderAPIReference(rep *report.ImpactReport) []byte {
	var doc strings.Builder
	doc.WriteString("# API Reference\n\n")
	fmt.Fprintf(&doc, "Extracted from commit `%s`.\n", rep.ShortSHA())

	files := make([]report.FileChange, 0, len(rep.Changes))
	for _, c := range rep.Changes {
		if c.Kind == report.ChangeDeleted || len(c.Features.APIEndpoints) == 0 {
			continue
		}
		files = append(files, c)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	if len(files) == 0 {
		doc.WriteString("\nNo HTTP endpoints were detected in the changed files.\n")
	}

	for _, file := range files {
		fmt.Fprintf(&doc, "\n## `%s`\n", file.Path)

		endpoints := append([]report.Endpoint(nil), file.Features.APIEndpoints...)
		sort.Slice(endpoints, func(i, j int) bool {
			if endpoints[i].Verb != endpoints[j].Verb {
				return endpoints[i].Verb < endpoints[j].Verb
			}
			return endpoints[i].Route < endpoints[j].Route
		})

		for _, ep := range endpoints {
			fmt.Fprintf(&doc, "\n### %s %s\n\n", ep.Verb, ep.Route)
			fmt.Fprintf(&doc, "%s\n\n", endpointSummary(ep))
			if params := routeParams(ep.Route); len(params) > 0 {
				fmt.Fprintf(&doc, "Path parameters: %s\n\n", strings.Join(params, ", "))
			}
			fmt.Fprintf(&doc, "Authentication: %s\n\n", authHint(ep.Route))
			doc.WriteString("```bash\n")
			doc.WriteString(curlExample(ep))
			doc.WriteString("\n```\n")
		}
	}

	if entities := collectSchemas(rep); len(entities) > 0 {
		doc.WriteString("\n## Data Model\n")
		for _, e := range entities {
			fmt.Fprintf(&doc, "\n### Entity %s\n\n", e.Name)
			for _, field := range e.Fields {
				fmt.Fprintf(&doc, "- %s\n", field)
			}
		}
	}
	return finishDoc(&doc)
}

// collectSchemas merges the schema entities seen across the commit's current
// files, deduplicating fields and sorting for stable output.
func collectSchemas(rep *report.ImpactReport) []report.SchemaEntity {
	fields := map[string]map[string]bool{}
	for _, c := range rep.Changes {
		if c.Kind == report.ChangeDeleted {
			continue
		}
		for _, s := range c.Features.Schemas {
			set := fields[s.Name]
			if set == nil {
				set = map[string]bool{}
				fields[s.Name] = set
			}
			for _, f := range s.Fields {
				set[f] = true
			}
		}
	}

	entities := make([]report.SchemaEntity, 0, len(fields))
	for name, set := range fields {
		e := report.SchemaEntity{Name: name}
		for f := range set {
			e.Fields = append(e.Fields, f)
		}
		sort.Strings(e.Fields)
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return entities
}

func endpointSummary(ep report.Endpoint) string {
	resource := strings.Trim(ep.Route, "/")
	if resource == "" {
		resource = "the service root"
	} else {
		resource = "`" + resource + "`"
	}
	switch ep.Verb {
	case "GET":
		return "Retrieves " + resource + "."
	case "POST":
		return "Creates or submits to " + resource + "."
	case "PUT", "PATCH":
		return "Updates " + resource + "."
	case "DELETE":
		return "Removes " + resource + "."
	default:
		return "Handles " + ep.Verb + " requests for " + resource + "."
	}
}

// routeParams extracts placeholder names from the three common route template
// styles: `{id}`, `:id`, and `<int:id>`.
func routeParams(route string) []string {
	var params []string
	for _, m := range routeParam.FindAllStringSubmatch(route, -1) {
		name := m[1] + m[2] + m[3]
		// Flask converters spell `<int:id>`; keep only the name.
		if idx := strings.LastIndexByte(name, ':'); idx >= 0 {
			name = name[idx+1:]
		}
		params = append(params, "`"+name+"`")
	}
	return params
}

func authHint(route string) string {
	lower := strings.ToLower(route)
	switch {
	case strings.Contains(lower, "health") || strings.Contains(lower, "public") ||
		strings.Contains(lower, "login") || strings.Contains(lower, "webhook"):
		return "none expected"
	case strings.Contains(lower, "admin"):
		return "admin credentials required"
	default:
		return "bearer token assumed; verify against the handler"
	}
}

func curlExample(ep report.Endpoint) string {
	// Substitute each placeholder with a literal 1 so the example is runnable.
	route := routeParam.ReplaceAllString(ep.Route, "1")
	url := "https://api.example.com" + route
	if ep.Verb == "GET" {
		return "curl '" + url + "'"
	}
	return "curl -X " + ep.Verb + " '" + url + "'"
}
