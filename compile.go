package graphom

import (
	"fmt"
	"strconv"
	"strings"
)

// CollectionSort directs a client-side sort of one relationship collection.
// RelationshipPath is the underscore-joined alias path from the root.
type CollectionSort struct {
	RelationshipPath string
	Property         string
	Ascending        bool
}

// CompiledQuery is the compiler's output contract: a WHERE clause, a
// root-level ORDER BY clause, collection sort directives for the result
// transformer, and the bound parameters. Parameter names are deterministic
// for a given condition tree; compiling the same tree twice yields
// identical output.
type CompiledQuery struct {
	Where           string
	OrderBy         string
	CollectionSorts []CollectionSort
	Parameters      map[string]any
}

// Compile builds the clauses for a query over the named fragment or view.
// It fails fast: no partial statement is ever produced.
func (m *Model) Compile(target string, conds []Condition, orders []OrderSpec) (*CompiledQuery, error) {
	view, _, err := m.viewFor(target)
	if err != nil {
		return nil, err
	}

	return m.compile(view, conds, orders)
}

func (m *Model) compile(view *View, conds []Condition, orders []OrderSpec) (*CompiledQuery, error) {
	c := &compilation{model: m, params: make(map[string]any)}

	grouped, err := c.group(view, conds)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(grouped))

	for _, cond := range grouped {
		s, err := c.compileCondition(view, cond)
		if err != nil {
			return nil, err
		}

		parts = append(parts, s)
	}

	// Required-relationship filter: single, non-optional relationships get
	// an unconditional existence check so the transformer never sees a
	// root missing them. A top-level relationship condition for the same
	// alias already guarantees existence.
	for i := range view.Relationships {
		rel := &view.Relationships[i]
		if rel.Cardinality != Single || rel.Optional {
			continue
		}

		if hasRelationshipCondition(grouped, rel.Name) {
			continue
		}

		s, err := c.compileRelationship(view, view.Alias, "", RelationshipCondition{Alias: rel.Name}, map[string]bool{view.Name: true})
		if err != nil {
			return nil, err
		}

		parts = append(parts, s)
	}

	cq := &CompiledQuery{
		Where:      strings.Join(parts, " AND "),
		Parameters: c.params,
	}

	var rootOrder []string

	for _, o := range orders {
		alias, prop, ok := cutPath(o.Path)
		if !ok {
			return nil, fmt.Errorf("%w: order path %q must be alias.property", ErrConfiguration, o.Path)
		}

		if alias == view.Alias {
			rootOrder = append(rootOrder, fmt.Sprintf("%s.%s %s", alias, prop, directionWord(o.Ascending)))
			continue
		}

		if err := m.checkRelationshipPath(view, alias); err != nil {
			return nil, err
		}

		cq.CollectionSorts = append(cq.CollectionSorts, CollectionSort{
			RelationshipPath: alias,
			Property:         prop,
			Ascending:        o.Ascending,
		})
	}

	cq.OrderBy = strings.Join(rootOrder, ", ")

	return cq, nil
}

// checkRelationshipPath validates an underscore-joined relationship alias
// path against the view, descending through nested view targets.
func (m *Model) checkRelationshipPath(view *View, alias string) error {
	v := view

	for {
		rel, rem := v.matchRelationship(alias)
		if rel == nil {
			return fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, alias, v.Name)
		}

		if rem == "" {
			return nil
		}

		frag, tv := m.resolveTarget(rel)
		if tv == nil {
			return fmt.Errorf("%w: alias %q descends into fragment %q which is not a view", ErrQueryCompilation, alias, frag.Name)
		}

		v, alias = tv, rem
	}
}

// compilation carries the parameter map and counter for one compile call.
// The counter is shared across the whole traversal so a repeated traversal
// of the same tree reproduces identical names.
type compilation struct {
	model   *Model
	params  map[string]any
	counter int
}

// param binds a value and returns the deterministic parameter name for the
// given dot-path.
func (c *compilation) param(path string, v any) string {
	name := "param_" + strings.ReplaceAll(path, ".", "_") + "_" + strconv.Itoa(c.counter)
	c.counter++
	c.params[name] = v

	return name
}

// group walks the flat condition list once and wraps loose property and
// label conditions whose alias names a declared relationship (or a nested
// rel_child alias) into a RelationshipCondition for that relationship.
// Conditions inside an OrCondition are not grouped; each OR branch
// compiles independently.
func (c *compilation) group(view *View, conds []Condition) ([]Condition, error) {
	out := make([]Condition, 0, len(conds))
	buckets := make(map[string]int)

	add := func(relName string, cond Condition) {
		if i, ok := buckets[relName]; ok {
			if cond != nil {
				rc := out[i].(RelationshipCondition)
				rc.Conditions = append(rc.Conditions, cond)
				out[i] = rc
			}

			return
		}

		buckets[relName] = len(out)

		if cond == nil {
			out = append(out, RelationshipCondition{Alias: relName})
		} else {
			out = append(out, RelationshipCondition{Alias: relName, Conditions: []Condition{cond}})
		}
	}

	for _, cond := range conds {
		switch t := cond.(type) {
		case PropertyCondition:
			alias, _, ok := cutPath(t.Path)
			if !ok {
				return nil, fmt.Errorf("%w: property path %q must be alias.property", ErrConfiguration, t.Path)
			}

			if alias == view.Alias {
				out = append(out, t)
				continue
			}

			rel, _ := view.matchRelationship(alias)
			if rel == nil {
				return nil, fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, alias, view.Name)
			}

			add(rel.Name, t)

		case LabelCondition:
			if t.Alias == view.Alias {
				out = append(out, t)
				continue
			}

			rel, _ := view.matchRelationship(t.Alias)
			if rel == nil {
				return nil, fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, t.Alias, view.Name)
			}

			add(rel.Name, t)

		case RelationshipCondition:
			if view.relationship(t.Alias) == nil {
				return nil, fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, t.Alias, view.Name)
			}

			for _, sub := range t.Conditions {
				add(t.Alias, sub)
			}

			if len(t.Conditions) == 0 {
				add(t.Alias, nil)
			}

		default:
			out = append(out, cond)
		}
	}

	return out, nil
}

func hasRelationshipCondition(conds []Condition, alias string) bool {
	for _, c := range conds {
		if rc, ok := c.(RelationshipCondition); ok && rc.Alias == alias {
			return true
		}
	}

	return false
}

func (c *compilation) compileCondition(view *View, cond Condition) (string, error) {
	switch t := cond.(type) {
	case PropertyCondition:
		return c.compileProperty(t), nil

	case LabelCondition:
		return t.Alias + ":" + strings.Join(t.Labels, ":"), nil

	case OrCondition:
		parts := make([]string, 0, len(t.Conditions))

		for _, sub := range t.Conditions {
			s, err := c.compileOrBranch(view, sub)
			if err != nil {
				return "", err
			}

			parts = append(parts, s)
		}

		return "(" + strings.Join(parts, " OR ") + ")", nil

	case RelationshipCondition:
		return c.compileRelationship(view, view.Alias, "", t, map[string]bool{view.Name: true})

	default:
		return "", fmt.Errorf("%w: unsupported condition %T", ErrQueryCompilation, cond)
	}
}

func (c *compilation) compileProperty(t PropertyCondition) string {
	if !t.Op.takesValue() {
		return fmt.Sprintf("%s %s", t.Path, t.Op)
	}

	name := c.param(t.Path, t.Value)
	if t.Op == OpIn {
		return fmt.Sprintf("%s IN $%s", t.Path, name)
	}

	return fmt.Sprintf("%s %s $%s", t.Path, t.Op, name)
}

// compileOrBranch compiles one OR branch. Branches that reference a
// relationship alias are promoted to their own existence check so that
// relationship filters inside OR keep their traversal semantics.
func (c *compilation) compileOrBranch(view *View, cond Condition) (string, error) {
	visited := map[string]bool{view.Name: true}

	switch t := cond.(type) {
	case PropertyCondition:
		alias, _, ok := cutPath(t.Path)
		if !ok {
			return "", fmt.Errorf("%w: property path %q must be alias.property", ErrConfiguration, t.Path)
		}

		if alias == view.Alias {
			return c.compileProperty(t), nil
		}

		rel, _ := view.matchRelationship(alias)
		if rel == nil {
			return "", fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, alias, view.Name)
		}

		return c.compileRelationship(view, view.Alias, "", RelationshipCondition{Alias: rel.Name, Conditions: []Condition{t}}, visited)

	case LabelCondition:
		if t.Alias == view.Alias {
			return c.compileCondition(view, t)
		}

		rel, _ := view.matchRelationship(t.Alias)
		if rel == nil {
			return "", fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, t.Alias, view.Name)
		}

		return c.compileRelationship(view, view.Alias, "", RelationshipCondition{Alias: rel.Name, Conditions: []Condition{t}}, visited)

	default:
		return c.compileCondition(view, cond)
	}
}

// compileRelationship emits an existence check wrapping the relationship's
// traversal pattern. ownerAlias is the already-bound alias of the owning
// node; prefix is the underscore-joined alias path to the owner ("" at the
// root). Target conditions whose alias descends further are recursively
// separated into nested existence checks, which is only legal when the
// target is itself a view.
func (c *compilation) compileRelationship(owner *View, ownerAlias, prefix string, rc RelationshipCondition, visited map[string]bool) (string, error) {
	rel := owner.relationship(rc.Alias)
	if rel == nil {
		return "", fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, rc.Alias, owner.Name)
	}

	fullAlias := rc.Alias
	if prefix != "" {
		fullAlias = prefix + "_" + rc.Alias
	}

	targetFrag, targetView := c.model.resolveTarget(rel)
	pattern := traversalPattern(ownerAlias, rel, fullAlias, targetFrag.Labels)

	var inner []string

	type childBucket struct {
		name  string
		conds []Condition
	}

	var children []childBucket

	addChild := func(name string, cond Condition) {
		for i := range children {
			if children[i].name == name {
				if cond != nil {
					children[i].conds = append(children[i].conds, cond)
				}

				return
			}
		}

		b := childBucket{name: name}
		if cond != nil {
			b.conds = []Condition{cond}
		}

		children = append(children, b)
	}

	classify := func(alias string, cond Condition, path string) (direct bool, err error) {
		if alias == fullAlias {
			return true, nil
		}

		rest, nested := strings.CutPrefix(alias, fullAlias+"_")
		if !nested {
			return false, fmt.Errorf("%w: condition alias %q does not belong to relationship %q", ErrConfiguration, alias, fullAlias)
		}

		if targetView == nil {
			return false, fmt.Errorf("%w: nested filter %q targets fragment %q which is not a view", ErrQueryCompilation, path, targetFrag.Name)
		}

		childRel, _ := targetView.matchRelationship(rest)
		if childRel == nil {
			return false, fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, rest, targetView.Name)
		}

		addChild(childRel.Name, cond)

		return false, nil
	}

	for _, sub := range rc.Conditions {
		switch t := sub.(type) {
		case PropertyCondition:
			alias, _, ok := cutPath(t.Path)
			if !ok {
				return "", fmt.Errorf("%w: property path %q must be alias.property", ErrConfiguration, t.Path)
			}

			direct, err := classify(alias, t, t.Path)
			if err != nil {
				return "", err
			}

			if direct {
				inner = append(inner, c.compileProperty(t))
			}

		case LabelCondition:
			direct, err := classify(t.Alias, t, t.Alias)
			if err != nil {
				return "", err
			}

			if direct {
				inner = append(inner, t.Alias+":"+strings.Join(t.Labels, ":"))
			}

		case RelationshipCondition:
			if targetView == nil {
				return "", fmt.Errorf("%w: nested filter on %q targets fragment %q which is not a view", ErrQueryCompilation, t.Alias, targetFrag.Name)
			}

			for _, child := range t.Conditions {
				addChild(t.Alias, child)
			}

			if len(t.Conditions) == 0 {
				addChild(t.Alias, nil)
			}

		case OrCondition:
			s, err := c.compileTargetOr(targetView, fullAlias, targetFrag, t)
			if err != nil {
				return "", err
			}

			inner = append(inner, s)

		default:
			return "", fmt.Errorf("%w: unsupported condition %T", ErrQueryCompilation, sub)
		}
	}

	for _, child := range children {
		s, err := c.compileRelationship(targetView, fullAlias, fullAlias, RelationshipCondition{Alias: child.name, Conditions: child.conds}, visited)
		if err != nil {
			return "", err
		}

		inner = append(inner, s)
	}

	// Required relationships of a view target propagate into the
	// existence check. The visited mark is scoped to this path: only
	// genuine cycles are cut, never a sibling traversal into the same
	// view.
	if targetView != nil && !visited[targetView.Name] {
		visited[targetView.Name] = true

		for i := range targetView.Relationships {
			child := &targetView.Relationships[i]
			if child.Cardinality != Single || child.Optional {
				continue
			}

			already := false

			for _, b := range children {
				if b.name == child.Name {
					already = true
					break
				}
			}

			if already {
				continue
			}

			s, err := c.compileRelationship(targetView, fullAlias, fullAlias, RelationshipCondition{Alias: child.Name}, visited)
			if err != nil {
				return "", err
			}

			inner = append(inner, s)
		}

		delete(visited, targetView.Name)
	}

	if len(inner) == 0 {
		return "EXISTS { MATCH " + pattern + " }", nil
	}

	return "EXISTS { MATCH " + pattern + " WHERE " + strings.Join(inner, " AND ") + " }", nil
}

// compileTargetOr compiles an OR group inside an existence check. Branches
// referencing the target's own nested relationships are promoted the same
// way top-level OR branches are.
func (c *compilation) compileTargetOr(targetView *View, targetAlias string, targetFrag *NodeFragment, or OrCondition) (string, error) {
	parts := make([]string, 0, len(or.Conditions))

	for _, sub := range or.Conditions {
		switch t := sub.(type) {
		case PropertyCondition:
			alias, _, ok := cutPath(t.Path)
			if !ok {
				return "", fmt.Errorf("%w: property path %q must be alias.property", ErrConfiguration, t.Path)
			}

			if alias == targetAlias {
				parts = append(parts, c.compileProperty(t))
				continue
			}

			rest, nested := strings.CutPrefix(alias, targetAlias+"_")
			if !nested {
				return "", fmt.Errorf("%w: condition alias %q does not belong to relationship %q", ErrConfiguration, alias, targetAlias)
			}

			if targetView == nil {
				return "", fmt.Errorf("%w: nested filter %q targets fragment %q which is not a view", ErrQueryCompilation, t.Path, targetFrag.Name)
			}

			childRel, _ := targetView.matchRelationship(rest)
			if childRel == nil {
				return "", fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, rest, targetView.Name)
			}

			s, err := c.compileRelationship(targetView, targetAlias, targetAlias, RelationshipCondition{Alias: childRel.Name, Conditions: []Condition{t}}, map[string]bool{targetView.Name: true})
			if err != nil {
				return "", err
			}

			parts = append(parts, s)

		case LabelCondition:
			if t.Alias == targetAlias {
				parts = append(parts, t.Alias+":"+strings.Join(t.Labels, ":"))
				continue
			}

			rest, nested := strings.CutPrefix(t.Alias, targetAlias+"_")
			if !nested {
				return "", fmt.Errorf("%w: condition alias %q does not belong to relationship %q", ErrConfiguration, t.Alias, targetAlias)
			}

			if targetView == nil {
				return "", fmt.Errorf("%w: nested filter %q targets fragment %q which is not a view", ErrQueryCompilation, t.Alias, targetFrag.Name)
			}

			childRel, _ := targetView.matchRelationship(rest)
			if childRel == nil {
				return "", fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, rest, targetView.Name)
			}

			s, err := c.compileRelationship(targetView, targetAlias, targetAlias, RelationshipCondition{Alias: childRel.Name, Conditions: []Condition{t}}, map[string]bool{targetView.Name: true})
			if err != nil {
				return "", err
			}

			parts = append(parts, s)

		case OrCondition:
			s, err := c.compileTargetOr(targetView, targetAlias, targetFrag, t)
			if err != nil {
				return "", err
			}

			parts = append(parts, s)

		default:
			return "", fmt.Errorf("%w: unsupported condition %T inside OR", ErrQueryCompilation, sub)
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", nil
}

// traversalPattern renders the relationship's match pattern with the
// target node bound to fullAlias.
func traversalPattern(ownerAlias string, rel *Relationship, fullAlias string, targetLabels []string) string {
	node := fmt.Sprintf("(%s:%s)", fullAlias, strings.Join(targetLabels, ":"))

	switch rel.Direction {
	case Incoming:
		return fmt.Sprintf("(%s)<-[:%s]-%s", ownerAlias, rel.Type, node)
	case Undirected:
		return fmt.Sprintf("(%s)-[:%s]-%s", ownerAlias, rel.Type, node)
	default:
		return fmt.Sprintf("(%s)-[:%s]->%s", ownerAlias, rel.Type, node)
	}
}

func directionWord(ascending bool) string {
	if ascending {
		return "ASC"
	}

	return "DESC"
}
