package graphom

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Direction indicates how a relationship is traversed from its owning
// fragment.
type Direction int

// Relationship directions.
const (
	Outgoing Direction = iota
	Incoming
	Undirected
)

// Cardinality distinguishes single-valued from collection-valued
// relationships.
type Cardinality int

// Relationship cardinalities.
const (
	Single Cardinality = iota
	Collection
)

// Cascade governs what happens to a relationship's target node when the
// relationship is removed from the in-memory object before a save.
type Cascade int

// Cascade policies.
const (
	// CascadeNone deletes only the edge.
	CascadeNone Cascade = iota

	// CascadeDeleteAll deletes the edge and unconditionally deletes the
	// target node, recursing through view targets' own relationships.
	CascadeDeleteAll

	// CascadeDeleteOrphan deletes the edge, then deletes the target node
	// only if no other edge still references it. The two steps are not
	// atomic; run the plan inside an explicit transaction if that matters.
	CascadeDeleteOrphan

	// CascadePreserve skips the removal entirely. Use it for additive,
	// partial-collection saves where a shorter in-memory collection must
	// not be read as "the rest were deleted".
	CascadePreserve
)

func (c Cascade) String() string {
	switch c {
	case CascadeNone:
		return "NONE"
	case CascadeDeleteAll:
		return "DELETE_ALL"
	case CascadeDeleteOrphan:
		return "DELETE_ORPHAN"
	case CascadePreserve:
		return "PRESERVE"
	default:
		return fmt.Sprintf("Cascade(%d)", int(c))
	}
}

// Property maps a graph property name to a Go struct field. Field defaults
// to Name with its first rune upper-cased.
type Property struct {
	Name  string
	Field string
}

// SortSpec declares a client-side sort applied to a collection-valued
// relationship after rows are materialized.
type SortSpec struct {
	Property  string
	Ascending bool
}

// Subtype declares one concrete variant of a polymorphic fragment.
// Labels is the variant's full label set. Discriminator optionally binds
// the variant to a value of the fragment's discriminator property.
type Subtype struct {
	Labels        []string
	Discriminator string
	New           func() any
}

// NodeFragment describes a reusable group of node properties: its label
// set, identity property and scalar properties. New constructs a pointer
// to the fragment's Go type; it may be nil for abstract bases that are
// only ever materialized through registered subtypes.
type NodeFragment struct {
	Name          string
	Labels        []string
	Identity      Property
	Properties    []Property
	Discriminator string
	New           func() any
	Subtypes      []Subtype
}

// Relationship describes one named edge of a view. Name doubles as the
// filter alias; Field defaults to Name with its first rune upper-cased.
// Target names either a fragment or another view.
type Relationship struct {
	Name        string
	Type        string
	Direction   Direction
	Target      string
	Cardinality Cardinality
	Optional    bool
	Field       string
	Sort        *SortSpec
}

// View composes one root fragment with named relationships. Alias defaults
// to the root fragment's name with its first rune lower-cased.
type View struct {
	Name          string
	Root          string
	Alias         string
	Relationships []Relationship
}

// relationship returns the declared relationship with the given name, or
// nil.
func (v *View) relationship(name string) *Relationship {
	for i := range v.Relationships {
		if v.Relationships[i].Name == name {
			return &v.Relationships[i]
		}
	}

	return nil
}

// matchRelationship resolves an alias against the view's relationships.
// It returns the matched relationship and the remainder of the alias past
// the underscore separator ("" for an exact match). Relationship names may
// themselves contain underscores, so the longest declared name wins.
func (v *View) matchRelationship(alias string) (*Relationship, string) {
	var (
		best    *Relationship
		bestRem string
		bestLen = -1
	)

	for i := range v.Relationships {
		r := &v.Relationships[i]
		if len(r.Name) <= bestLen {
			continue
		}

		if alias == r.Name {
			best, bestRem, bestLen = r, "", len(r.Name)
		} else if strings.HasPrefix(alias, r.Name+"_") {
			best, bestRem, bestLen = r, alias[len(r.Name)+1:], len(r.Name)
		}
	}

	return best, bestRem
}

// Model is the immutable descriptor registry. It is built once at startup
// and shared read-only afterwards.
type Model struct {
	fragments map[string]*NodeFragment
	views     map[string]*View
	subtypes  *subtypeRegistry
}

// NewModel validates the given descriptors and builds the registry.
// Closed-hierarchy subtypes declared on fragments are registered here;
// open hierarchies register later via [Model.RegisterSubtype].
func NewModel(fragments []NodeFragment, views []View) (*Model, error) {
	m := &Model{
		fragments: make(map[string]*NodeFragment, len(fragments)),
		views:     make(map[string]*View, len(views)),
		subtypes:  newSubtypeRegistry(),
	}

	for i := range fragments {
		f := fragments[i]
		if err := normalizeFragment(&f); err != nil {
			return nil, err
		}

		if _, dup := m.fragments[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate fragment %q", ErrConfiguration, f.Name)
		}

		m.fragments[f.Name] = &f
	}

	for i := range views {
		v := views[i]
		if err := m.normalizeView(&v); err != nil {
			return nil, err
		}

		if _, dup := m.views[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate view %q", ErrConfiguration, v.Name)
		}

		if _, clash := m.fragments[v.Name]; clash && v.Name != v.Root {
			return nil, fmt.Errorf("%w: view %q shadows a fragment of the same name", ErrConfiguration, v.Name)
		}

		m.views[v.Name] = &v
	}

	// Relationship targets and sort specs can only be checked once every
	// descriptor is registered.
	for _, v := range m.views {
		for i := range v.Relationships {
			if err := m.checkRelationship(v, &v.Relationships[i]); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range m.fragments {
		for _, st := range f.Subtypes {
			if err := m.subtypes.register(f.Name, st); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// RegisterSubtype registers a concrete type for an open hierarchy rooted
// at the named fragment. Call it any number of times before the first
// query against that fragment; registration is not synchronized with
// concurrent use.
func (m *Model) RegisterSubtype(base string, labels []string, factory func() any) error {
	if _, ok := m.fragments[base]; !ok {
		return fmt.Errorf("%w: unknown fragment %q", ErrConfiguration, base)
	}

	return m.subtypes.register(base, Subtype{Labels: labels, New: factory})
}

// Fragment returns the named fragment descriptor, or nil.
func (m *Model) Fragment(name string) *NodeFragment { return m.fragments[name] }

// View returns the named view descriptor, or nil.
func (m *Model) View(name string) *View { return m.views[name] }

// viewFor resolves a query target: a declared view, or a fragment wrapped
// in a synthetic relationship-less view.
func (m *Model) viewFor(name string) (*View, *NodeFragment, error) {
	if v := m.views[name]; v != nil {
		return v, m.fragments[v.Root], nil
	}

	if f := m.fragments[name]; f != nil {
		return &View{Name: name, Root: name, Alias: lowerFirst(name)}, f, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown fragment or view %q", ErrConfiguration, name)
}

// resolveTarget returns the target fragment of a relationship and, when
// the target is a view, that view.
func (m *Model) resolveTarget(rel *Relationship) (*NodeFragment, *View) {
	if v := m.views[rel.Target]; v != nil {
		return m.fragments[v.Root], v
	}

	return m.fragments[rel.Target], nil
}

func normalizeFragment(f *NodeFragment) error {
	if f.Name == "" {
		return fmt.Errorf("%w: fragment with empty name", ErrConfiguration)
	}

	if len(f.Labels) == 0 {
		return fmt.Errorf("%w: fragment %q has no labels", ErrConfiguration, f.Name)
	}

	if f.Identity.Name == "" {
		return fmt.Errorf("%w: fragment %q has no identity property", ErrConfiguration, f.Name)
	}

	f.Identity.Field = defaultField(f.Identity)

	seen := map[string]bool{f.Identity.Name: true}

	for i := range f.Properties {
		p := &f.Properties[i]
		if p.Name == "" {
			return fmt.Errorf("%w: fragment %q has a property with empty name", ErrConfiguration, f.Name)
		}

		if seen[p.Name] {
			return fmt.Errorf("%w: fragment %q declares property %q twice", ErrConfiguration, f.Name, p.Name)
		}

		seen[p.Name] = true
		p.Field = defaultField(*p)
	}

	return nil
}

func (m *Model) normalizeView(v *View) error {
	if v.Root == "" {
		return fmt.Errorf("%w: view %q has no root fragment", ErrConfiguration, v.Name)
	}

	if _, ok := m.fragments[v.Root]; !ok {
		return fmt.Errorf("%w: view %q roots unknown fragment %q", ErrConfiguration, v.Name, v.Root)
	}

	if v.Name == "" {
		v.Name = v.Root
	}

	if v.Alias == "" {
		v.Alias = lowerFirst(v.Root)
	}

	seen := map[string]bool{v.Alias: true}

	for i := range v.Relationships {
		r := &v.Relationships[i]
		if r.Name == "" {
			return fmt.Errorf("%w: view %q has a relationship with empty name", ErrConfiguration, v.Name)
		}

		if r.Type == "" {
			return fmt.Errorf("%w: relationship %q on view %q has no edge type", ErrConfiguration, r.Name, v.Name)
		}

		if seen[r.Name] {
			return fmt.Errorf("%w: alias %q is not unique on view %q", ErrConfiguration, r.Name, v.Name)
		}

		seen[r.Name] = true

		if r.Field == "" {
			r.Field = defaultField(Property{Name: r.Name})
		}
	}

	return nil
}

func (m *Model) checkRelationship(v *View, r *Relationship) error {
	frag, view := m.fragments[r.Target], m.views[r.Target]
	if frag == nil && view == nil {
		return fmt.Errorf("%w: relationship %q on view %q targets unknown %q", ErrConfiguration, r.Name, v.Name, r.Target)
	}

	if r.Sort == nil {
		return nil
	}

	target, _ := m.resolveTarget(r)
	if target.Identity.Name == r.Sort.Property {
		return nil
	}

	for _, p := range target.Properties {
		if p.Name == r.Sort.Property {
			return nil
		}
	}

	return fmt.Errorf("%w: sort property %q not declared on fragment %q", ErrConfiguration, r.Sort.Property, target.Name)
}

// defaultField derives the Go field name from a property name when none
// is declared explicitly.
func defaultField(p Property) string {
	if p.Field != "" {
		return p.Field
	}

	r, size := utf8.DecodeRuneInString(p.Name)

	return string(unicode.ToUpper(r)) + p.Name[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)

	return string(unicode.ToLower(r)) + s[size:]
}
