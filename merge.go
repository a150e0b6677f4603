package graphom

import (
	"fmt"
	"strings"
)

// Plan is the ordered statement list produced for one save: the root
// upsert first, then relationship changes in declared order. Statements
// are executed in this order; the two-step orphan check under
// CascadeDeleteOrphan is not atomic unless the caller runs the plan inside
// an explicit transaction.
type Plan struct {
	Statements []Statement
}

// EdgePropertyProvider supplies relationship-level properties for edges
// created on save. Objects that do not implement it get bare edges.
type EdgePropertyProvider interface {
	EdgeProperties(relationship string, targetID any) map[string]any
}

// buildSavePlan turns a change set into statements. obj is consulted for
// edge properties on added targets.
func buildSavePlan(m *Model, frag *NodeFragment, cs *changeSet, cascade Cascade, obj any) (*Plan, error) {
	p := &Plan{}
	rootLabels := strings.Join(frag.Labels, ":")

	if cs.isNew || len(cs.scalars) > 0 {
		params := map[string]any{"id": cs.identity}
		sets := make([]string, 0, len(cs.scalars))

		for _, sv := range cs.scalars {
			name := "p_" + sv.name
			sets = append(sets, fmt.Sprintf("n.%s = $%s", sv.name, name))
			params[name] = sv.value
		}

		text := fmt.Sprintf("MERGE (n:%s {%s: $id})", rootLabels, frag.Identity.Name)
		if len(sets) > 0 {
			text += "\nSET " + strings.Join(sets, ", ")
		}

		p.Statements = append(p.Statements, Statement{Text: text, Parameters: params})
	}

	for _, rc := range cs.rels {
		targetFrag, targetView := m.resolveTarget(rc.rel)
		targetLabels := strings.Join(targetFrag.Labels, ":")

		for _, t := range rc.added {
			params := map[string]any{"id": cs.identity, "target_id": t.id}

			text := fmt.Sprintf("MERGE (m:%s {%s: $target_id})", targetLabels, targetFrag.Identity.Name) +
				"\nWITH m" +
				fmt.Sprintf("\nMATCH (n:%s {%s: $id})", rootLabels, frag.Identity.Name) +
				"\nMERGE " + edgePattern("n", "r", "m", rc.rel)

			if provider, ok := obj.(EdgePropertyProvider); ok {
				if props := provider.EdgeProperties(rc.rel.Name, t.id); len(props) > 0 {
					text += "\nSET r += $edge_props"
					params["edge_props"] = props
				}
			}

			p.Statements = append(p.Statements, Statement{Text: text, Parameters: params})
		}

		for _, t := range rc.removed {
			if cascade == CascadePreserve {
				continue
			}

			params := map[string]any{"id": cs.identity, "target_id": t.id}
			edgeDelete := fmt.Sprintf("MATCH (n:%s {%s: $id})", rootLabels, frag.Identity.Name) +
				matchEdge("r", rc.rel) +
				fmt.Sprintf("(m:%s {%s: $target_id})", targetLabels, targetFrag.Identity.Name) +
				"\nDELETE r"
			p.Statements = append(p.Statements, Statement{Text: edgeDelete, Parameters: params})

			switch cascade {
			case CascadeDeleteAll:
				p.Statements = append(p.Statements, cascadeDeleteStatements(m, targetFrag, targetView, t.id)...)
				p.Statements = append(p.Statements, Statement{
					Text: fmt.Sprintf("MATCH (m:%s {%s: $target_id})\nDETACH DELETE m",
						targetLabels, targetFrag.Identity.Name),
					Parameters: map[string]any{"target_id": t.id},
				})

			case CascadeDeleteOrphan:
				p.Statements = append(p.Statements, Statement{
					Text: fmt.Sprintf("MATCH (m:%s {%s: $target_id})\nWHERE NOT EXISTS { MATCH (m)--() }\nDELETE m",
						targetLabels, targetFrag.Identity.Name),
					Parameters: map[string]any{"target_id": t.id},
				})
			}
		}
	}

	return p, nil
}

// cascadeDeleteStatements emits deletes for a view target's own
// relationship targets under CascadeDeleteAll, deepest level first so no
// statement depends on a node an earlier one removed.
func cascadeDeleteStatements(m *Model, frag *NodeFragment, view *View, id any) []Statement {
	if view == nil {
		return nil
	}

	base := fmt.Sprintf("(:%s {%s: $target_id})", strings.Join(frag.Labels, ":"), frag.Identity.Name)
	visited := map[string]bool{view.Name: true}

	return cascadeWalk(m, view, base, id, visited)
}

func cascadeWalk(m *Model, view *View, pathPrefix string, id any, visited map[string]bool) []Statement {
	var out []Statement

	for i := range view.Relationships {
		rel := &view.Relationships[i]
		targetFrag, targetView := m.resolveTarget(rel)

		anonymous := pathPrefix + edgeArrow(rel) + fmt.Sprintf("(:%s)", strings.Join(targetFrag.Labels, ":"))

		// Path-scoped cycle guard: a sibling relationship into the same
		// view still gets its own nested deletes.
		if targetView != nil && !visited[targetView.Name] {
			visited[targetView.Name] = true
			out = append(out, cascadeWalk(m, targetView, anonymous, id, visited)...)
			delete(visited, targetView.Name)
		}

		leaf := pathPrefix + edgeArrow(rel) + fmt.Sprintf("(x:%s)", strings.Join(targetFrag.Labels, ":"))
		out = append(out, Statement{
			Text:       "MATCH " + leaf + "\nDETACH DELETE x",
			Parameters: map[string]any{"target_id": id},
		})
	}

	return out
}

// edgePattern renders a directed edge between two bound nodes for MERGE.
// Undirected relationships are written as outgoing; Cypher cannot create
// an edge without a direction.
func edgePattern(from, relVar, to string, rel *Relationship) string {
	switch rel.Direction {
	case Incoming:
		return fmt.Sprintf("(%s)<-[%s:%s]-(%s)", from, relVar, rel.Type, to)
	default:
		return fmt.Sprintf("(%s)-[%s:%s]->(%s)", from, relVar, rel.Type, to)
	}
}

// matchEdge renders the edge part of a match pattern between an already
// written "(n ...)" and a following "(m ...)".
func matchEdge(relVar string, rel *Relationship) string {
	switch rel.Direction {
	case Incoming:
		return fmt.Sprintf("<-[%s:%s]-", relVar, rel.Type)
	case Undirected:
		return fmt.Sprintf("-[%s:%s]-", relVar, rel.Type)
	default:
		return fmt.Sprintf("-[%s:%s]->", relVar, rel.Type)
	}
}

// edgeArrow renders an anonymous edge for cascade path patterns.
func edgeArrow(rel *Relationship) string {
	switch rel.Direction {
	case Incoming:
		return fmt.Sprintf("<-[:%s]-", rel.Type)
	case Undirected:
		return fmt.Sprintf("-[:%s]-", rel.Type)
	default:
		return fmt.Sprintf("-[:%s]->", rel.Type)
	}
}
