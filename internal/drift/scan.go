package drift

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var endpointHeading = regexp.MustCompile(`^([A-Z]+)\s+(/\S*)$`)

// docFacts is the comparable skeleton of one markdown document: its section
// headings, the endpoints it documents, and the schema entities it lists.
type docFacts struct {
	headings  []string                   // H2 and deeper, in document order
	endpoints map[string]bool            // "VERB /route"
	schemas   map[string]map[string]bool // entity -> field set
}

// scanDoc parses a markdown body and extracts the headings, endpoint
// headings ("GET /users"), and "Entity X" headings with their field bullet
// lists.
func scanDoc(body []byte) docFacts {
	facts := docFacts{
		endpoints: map[string]bool{},
		schemas:   map[string]map[string]bool{},
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var currentEntity string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			title := headingText(node, body)
			currentEntity = ""
			if node.Level >= 2 {
				facts.headings = append(facts.headings, title)
			}
			if m := endpointHeading.FindStringSubmatch(title); m != nil {
				facts.endpoints[m[1]+" "+m[2]] = true
			} else if name, ok := strings.CutPrefix(title, "Entity "); ok {
				currentEntity = name
				if facts.schemas[name] == nil {
					facts.schemas[name] = map[string]bool{}
				}
			}
			// Nothing below a heading needs descending into.
			return gmast.WalkSkipChildren, nil
		case *gmast.ListItem:
			if currentEntity != "" {
				field := strings.TrimSpace(string(nodeText(node, body)))
				if field != "" {
					facts.schemas[currentEntity][field] = true
				}
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return facts
}

func headingText(h *gmast.Heading, body []byte) string {
	return strings.TrimSpace(string(nodeText(h, body)))
}

// nodeText flattens the literal text under a node. Inline code spans keep
// their content so `GET /x` and GET /x compare equal.
func nodeText(n gmast.Node, body []byte) []byte {
	var out []byte
	_ = gmast.Walk(n, func(child gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *gmast.Text:
			out = append(out, t.Segment.Value(body)...)
		case *gmast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*gmast.Text); ok {
					out = append(out, txt.Segment.Value(body)...)
				}
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return out
}
