package graphom

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// labelsKey is the reserved row key carrying a node's labels.
const labelsKey = "labels"

// hydrator turns raw rows into typed objects using the model's subtype
// registry.
type hydrator struct {
	model *Model
}

// materializeRow builds the typed root object for one row of a query over
// view.
func (h hydrator) materializeRow(view *View, frag *NodeFragment, row map[string]any) (any, error) {
	v, ok := row[view.Alias]
	if !ok {
		return nil, fmt.Errorf("%w: row missing root alias %q", ErrDeserialization, view.Alias)
	}

	return h.node(view, frag, v)
}

// node materializes one node-shaped value. view is nil for plain fragment
// targets. Absent optional scalars stay at their zero value; an absent
// identity or required relationship fails loudly.
func (h hydrator) node(view *View, frag *NodeFragment, value any) (any, error) {
	props, labels, err := nodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w for fragment %q", err, frag.Name)
	}

	factory, err := h.model.subtypes.resolve(frag, labels, props)
	if err != nil {
		return nil, err
	}

	obj := factory()

	idv, ok := props[frag.Identity.Name]
	if !ok || idv == nil {
		return nil, fmt.Errorf("%w: node %q missing identity property %q", ErrDeserialization, frag.Name, frag.Identity.Name)
	}

	if err := writeField(obj, frag.Identity.Field, idv); err != nil {
		return nil, err
	}

	for _, p := range frag.Properties {
		pv, present := props[p.Name]
		if !present || pv == nil {
			continue
		}

		if err := writeField(obj, p.Field, pv); err != nil {
			return nil, err
		}
	}

	if view == nil {
		return obj, nil
	}

	for i := range view.Relationships {
		rel := &view.Relationships[i]
		if err := h.relationship(obj, frag, rel, props[rel.Name]); err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func (h hydrator) relationship(obj any, frag *NodeFragment, rel *Relationship, raw any) error {
	targetFrag, targetView := h.model.resolveTarget(rel)

	items := asList(raw)
	targets := make([]any, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		t, err := h.node(targetView, targetFrag, item)
		if err != nil {
			return err
		}

		targets = append(targets, t)
	}

	if rel.Sort != nil {
		if err := sortTargets(targetFrag, targets, rel.Sort.Property, rel.Sort.Ascending); err != nil {
			return err
		}
	}

	switch rel.Cardinality {
	case Single:
		if len(targets) == 0 {
			if !rel.Optional {
				return fmt.Errorf("%w: required relationship %q absent on %q", ErrDeserialization, rel.Name, frag.Name)
			}

			return nil
		}

		if len(targets) > 1 {
			return fmt.Errorf("%w: relationship %q expected a single target, got %d", ErrCardinality, rel.Name, len(targets))
		}

		return writeField(obj, rel.Field, targets[0])

	default:
		return writeSliceField(obj, rel.Field, targets)
	}
}

// applyCollectionSorts applies the compiler's collection sort directives
// to one materialized root object.
func (h hydrator) applyCollectionSorts(view *View, obj any, sorts []CollectionSort) error {
	for _, cs := range sorts {
		if err := h.applyCollectionSort(view, obj, cs.RelationshipPath, cs); err != nil {
			return err
		}
	}

	return nil
}

func (h hydrator) applyCollectionSort(view *View, obj any, alias string, cs CollectionSort) error {
	rel, rem := view.matchRelationship(alias)
	if rel == nil {
		return fmt.Errorf("%w: unknown relationship alias %q on view %q", ErrConfiguration, alias, view.Name)
	}

	targetFrag, targetView := h.model.resolveTarget(rel)

	if rem != "" {
		if targetView == nil {
			return fmt.Errorf("%w: alias %q descends into fragment %q which is not a view", ErrQueryCompilation, cs.RelationshipPath, targetFrag.Name)
		}

		targets, err := relationshipTargets(obj, rel)
		if err != nil {
			return err
		}

		for _, t := range targets {
			if err := h.applyCollectionSort(targetView, t, rem, cs); err != nil {
				return err
			}
		}

		return nil
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}

		v = v.Elem()
	}

	f := v.FieldByName(rel.Field)
	if !f.IsValid() || f.Kind() != reflect.Slice {
		return fmt.Errorf("%w: collection sort on non-collection relationship %q", ErrConfiguration, rel.Name)
	}

	targets := make([]any, f.Len())
	for i := range targets {
		targets[i] = f.Index(i).Interface()
	}

	if err := sortTargets(targetFrag, targets, cs.Property, cs.Ascending); err != nil {
		return err
	}

	return writeSliceField(obj, rel.Field, targets)
}

// sortTargets stably sorts materialized targets by the named property of
// the target fragment.
func sortTargets(frag *NodeFragment, targets []any, property string, ascending bool) error {
	field := ""

	if frag.Identity.Name == property {
		field = frag.Identity.Field
	} else {
		for _, p := range frag.Properties {
			if p.Name == property {
				field = p.Field
				break
			}
		}
	}

	if field == "" {
		return fmt.Errorf("%w: sort property %q not declared on fragment %q", ErrConfiguration, property, frag.Name)
	}

	var sortErr error

	sort.SliceStable(targets, func(i, j int) bool {
		a, err := readField(targets[i], field)
		if err != nil {
			sortErr = err
			return false
		}

		b, err := readField(targets[j], field)
		if err != nil {
			sortErr = err
			return false
		}

		if ascending {
			return lessValue(a, b)
		}

		return lessValue(b, a)
	})

	return sortErr
}

// lessValue orders the scalar types the driver produces. Mixed numeric
// kinds compare as float64.
func lessValue(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af < bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// nodeValue normalizes a node-shaped row value into a property bag and
// label list. Driver nodes pass through; plain maps carry labels under the
// reserved "labels" key.
func nodeValue(v any) (map[string]any, []string, error) {
	switch t := v.(type) {
	case dbtype.Node:
		return t.Props, t.Labels, nil
	case map[string]any:
		return t, stringList(t[labelsKey]), nil
	default:
		return nil, nil, fmt.Errorf("%w: unexpected node value of type %T", ErrDeserialization, v)
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))

		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// asList normalizes a relationship value: absent becomes empty, a single
// node-shaped value becomes a one-element list.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{v}
	}
}

// writeSliceField assigns materialized targets to a slice-typed field.
func writeSliceField(obj any, field string, targets []any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a pointer to struct", ErrConfiguration, obj)
	}

	f := v.Elem().FieldByName(field)
	if !f.IsValid() {
		return fmt.Errorf("%w: type %T has no field %q", ErrConfiguration, obj, field)
	}

	if f.Kind() != reflect.Slice {
		return fmt.Errorf("%w: field %q of %T is not a slice", ErrConfiguration, field, obj)
	}

	out := reflect.MakeSlice(f.Type(), 0, len(targets))

	for _, t := range targets {
		rv := reflect.ValueOf(t)
		if !rv.Type().AssignableTo(f.Type().Elem()) {
			return fmt.Errorf("%w: cannot assign %T to element of %s", ErrDeserialization, t, f.Type())
		}

		out = reflect.Append(out, rv)
	}

	f.Set(out)

	return nil
}
