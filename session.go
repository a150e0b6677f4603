package graphom

import (
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Session tracks snapshots of loaded objects for one unit of work, keyed
// by (concrete type, identity). It performs no internal locking: confine
// a session to one goroutine or synchronize externally. Discard the
// session when the unit of work ends.
type Session struct {
	store     *Store
	snapshots map[snapshotKey]*objectState
}

type snapshotKey struct {
	typeName string
	identity string
}

func keyFor(obj any, id any) snapshotKey {
	return snapshotKey{
		typeName: fmt.Sprintf("%T", obj),
		identity: fmt.Sprintf("%v", id),
	}
}

// objectState is the field-level capture of one object: scalar values and
// relationship target identities, both in declared order.
type objectState struct {
	identity any
	scalars  []scalarValue
	rels     []relState
}

type scalarValue struct {
	name  string
	value any
}

type relState struct {
	rel     *Relationship
	ids     []any
	objects []any
}

// scalarChange pairs a changed property with its new value.
type scalarChange = scalarValue

// targetRef identifies one relationship target. obj is nil for targets
// known only from the snapshot (removals).
type targetRef struct {
	id  any
	obj any
}

// relChange is the per-relationship set difference between snapshot and
// current state.
type relChange struct {
	rel     *Relationship
	added   []targetRef
	removed []targetRef
}

// changeSet is the save-diff handed to the merge builder.
type changeSet struct {
	isNew    bool
	identity any
	scalars  []scalarChange
	rels     []relChange
}

func (cs *changeSet) empty() bool {
	if cs.isNew || len(cs.scalars) > 0 {
		return false
	}

	for _, rc := range cs.rels {
		if len(rc.added) > 0 || len(rc.removed) > 0 {
			return false
		}
	}

	return true
}

// stateOf captures the current field-level state of obj against the
// view's descriptors.
func (s *Session) stateOf(view *View, frag *NodeFragment, obj any) (*objectState, error) {
	id, err := readField(obj, frag.Identity.Field)
	if err != nil {
		return nil, err
	}

	st := &objectState{identity: id}

	for _, p := range frag.Properties {
		v, err := readField(obj, p.Field)
		if err != nil {
			return nil, err
		}

		st.scalars = append(st.scalars, scalarValue{name: p.Name, value: v})
	}

	for i := range view.Relationships {
		rel := &view.Relationships[i]

		targets, err := relationshipTargets(obj, rel)
		if err != nil {
			return nil, err
		}

		targetFrag, _ := s.store.model.resolveTarget(rel)
		rs := relState{rel: rel}

		for _, t := range targets {
			tid, err := readField(t, targetFrag.Identity.Field)
			if err != nil {
				return nil, err
			}

			rs.ids = append(rs.ids, tid)
			rs.objects = append(rs.objects, t)
		}

		st.rels = append(st.rels, rs)
	}

	return st, nil
}

// track records the post-load (or post-save) snapshot for obj.
func (s *Session) track(view *View, frag *NodeFragment, obj any) error {
	st, err := s.stateOf(view, frag, obj)
	if err != nil {
		return err
	}

	s.put(obj, st)

	return nil
}

func (s *Session) put(obj any, st *objectState) {
	s.snapshots[keyFor(obj, st.identity)] = st
}

func (s *Session) forget(obj any, id any) {
	delete(s.snapshots, keyFor(obj, id))
}

// diff computes the change set for the given current state. Without a
// snapshot the object is new: every scalar is written and every present
// relationship target counts as added. With one, only changed scalars and
// the relationship set difference survive.
func (s *Session) diff(obj any, cur *objectState) *changeSet {
	cs := &changeSet{identity: cur.identity}

	snap := s.snapshots[keyFor(obj, cur.identity)]
	if snap == nil {
		cs.isNew = true

		for _, sv := range cur.scalars {
			cs.scalars = append(cs.scalars, scalarChange{name: sv.name, value: sv.value})
		}

		for _, rs := range cur.rels {
			rc := relChange{rel: rs.rel}
			for i, id := range rs.ids {
				rc.added = append(rc.added, targetRef{id: id, obj: rs.objects[i]})
			}

			cs.rels = append(cs.rels, rc)
		}

		return cs
	}

	for i, sv := range cur.scalars {
		if !cmp.Equal(snap.scalars[i].value, sv.value) {
			cs.scalars = append(cs.scalars, scalarChange{name: sv.name, value: sv.value})
		}
	}

	for i, rs := range cur.rels {
		prev := snap.rels[i]
		rc := relChange{rel: rs.rel}

		prevSet := idSet(prev.ids)
		curSet := idSet(rs.ids)

		for j, id := range rs.ids {
			if !prevSet[id] {
				rc.added = append(rc.added, targetRef{id: id, obj: rs.objects[j]})
			}
		}

		for _, id := range prev.ids {
			if !curSet[id] {
				rc.removed = append(rc.removed, targetRef{id: id})
			}
		}

		cs.rels = append(cs.rels, rc)
	}

	return cs
}

// idSet keys on the typed identity value, matching the scalar diff:
// int64(1) and "1" are different identities.
func idSet(ids []any) map[any]bool {
	set := make(map[any]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	return set
}

// relationshipTargets reads the current targets of a relationship field:
// a possibly-nil pointer for single cardinality, a slice for collections.
func relationshipTargets(obj any, rel *Relationship) ([]any, error) {
	raw, err := readField(obj, rel.Field)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(raw)
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Slice:
		out := make([]any, 0, v.Len())

		for i := 0; i < v.Len(); i++ {
			e := v.Index(i)
			if (e.Kind() == reflect.Pointer || e.Kind() == reflect.Interface) && e.IsNil() {
				continue
			}

			out = append(out, e.Interface())
		}

		return out, nil

	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}

		return []any{v.Interface()}, nil

	default:
		return nil, fmt.Errorf("%w: relationship field %q must be a pointer or slice, got %s", ErrConfiguration, rel.Field, v.Kind())
	}
}
