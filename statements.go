package graphom

import (
	"fmt"
	"strings"
)

// Statement is one parameterized statement handed to the executor.
type Statement struct {
	Text       string
	Parameters map[string]any
}

// buildLoadStatement renders the full read statement for a view: a MATCH
// over the root fragment, the compiled WHERE clause, and a map projection
// that pulls each relationship in through a pattern comprehension so every
// row arrives as one nested property bag.
func buildLoadStatement(m *Model, view *View, frag *NodeFragment, cq *CompiledQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MATCH (%s:%s)", view.Alias, strings.Join(frag.Labels, ":"))

	if cq.Where != "" {
		b.WriteString("\nWHERE " + cq.Where)
	}

	visited := map[string]bool{view.Name: true}
	fmt.Fprintf(&b, "\nRETURN %s AS %s", projection(m, view, view.Alias, "", visited), view.Alias)

	if cq.OrderBy != "" {
		b.WriteString("\nORDER BY " + cq.OrderBy)
	}

	return b.String()
}

// projection renders the map projection for one node. view may be nil for
// plain fragment targets. Relationship keys use the declared name; the
// comprehension variable uses the underscore-joined alias path so nested
// comprehensions never shadow each other. visited holds the views on the
// current traversal path only, so a cycle is cut off (the repeated view
// projects as a bare fragment) while sibling relationships to the same
// view still project in full.
func projection(m *Model, view *View, alias, prefix string, visited map[string]bool) string {
	parts := []string{".*", fmt.Sprintf("%s: labels(%s)", labelsKey, alias)}

	if view != nil {
		for i := range view.Relationships {
			rel := &view.Relationships[i]
			targetFrag, targetView := m.resolveTarget(rel)

			fullAlias := rel.Name
			if prefix != "" {
				fullAlias = prefix + "_" + rel.Name
			}

			if targetView != nil && visited[targetView.Name] {
				targetView = nil
			}

			pattern := traversalPattern(alias, rel, fullAlias, targetFrag.Labels)

			var sub string
			if targetView != nil {
				visited[targetView.Name] = true
				sub = projection(m, targetView, fullAlias, fullAlias, visited)
				delete(visited, targetView.Name)
			} else {
				sub = projection(m, nil, fullAlias, fullAlias, visited)
			}

			parts = append(parts, fmt.Sprintf("%s: [ %s | %s ]", rel.Name, pattern, sub))
		}
	}

	return fmt.Sprintf("%s { %s }", alias, strings.Join(parts, ", "))
}

// buildCountStatement renders a count over the view's root fragment.
func buildCountStatement(view *View, frag *NodeFragment, cq *CompiledQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MATCH (%s:%s)", view.Alias, strings.Join(frag.Labels, ":"))

	if cq.Where != "" {
		b.WriteString("\nWHERE " + cq.Where)
	}

	fmt.Fprintf(&b, "\nRETURN count(%s) AS count", view.Alias)

	return b.String()
}

// buildDeleteStatement renders a detach-delete over the view's root
// fragment, returning the number of deleted nodes.
func buildDeleteStatement(view *View, frag *NodeFragment, cq *CompiledQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MATCH (%s:%s)", view.Alias, strings.Join(frag.Labels, ":"))

	if cq.Where != "" {
		b.WriteString("\nWHERE " + cq.Where)
	}

	fmt.Fprintf(&b, "\nDETACH DELETE %s", view.Alias)
	fmt.Fprintf(&b, "\nRETURN count(%s) AS deleted", view.Alias)

	return b.String()
}
