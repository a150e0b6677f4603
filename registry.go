package graphom

import (
	"fmt"
	"slices"
	"strings"
)

// compositeKeyDelimiter joins a sorted label set into a composite label
// key. The key is the primary lookup for polymorphic type resolution.
const compositeKeyDelimiter = ","

// compositeLabelKey sorts the labels lexicographically and joins them, so
// the order the database returns labels in never affects resolution.
func compositeLabelKey(labels []string) string {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)

	return strings.Join(sorted, compositeKeyDelimiter)
}

// subtypeRegistry maps, per base fragment, composite label keys to
// concrete constructors, with weaker fallbacks on single labels and
// discriminator values.
type subtypeRegistry struct {
	entries map[string]*subtypeEntry
}

type subtypeEntry struct {
	composite     map[string]func() any
	single        map[string]func() any
	discriminator map[string]func() any
}

func newSubtypeRegistry() *subtypeRegistry {
	return &subtypeRegistry{entries: make(map[string]*subtypeEntry)}
}

func (r *subtypeRegistry) register(base string, st Subtype) error {
	if len(st.Labels) == 0 {
		return fmt.Errorf("%w: subtype of %q has no labels", ErrConfiguration, base)
	}

	if st.New == nil {
		return fmt.Errorf("%w: subtype of %q has no constructor", ErrConfiguration, base)
	}

	e := r.entries[base]
	if e == nil {
		e = &subtypeEntry{
			composite:     make(map[string]func() any),
			single:        make(map[string]func() any),
			discriminator: make(map[string]func() any),
		}
		r.entries[base] = e
	}

	key := compositeLabelKey(st.Labels)
	if _, dup := e.composite[key]; dup {
		return fmt.Errorf("%w: composite label key %q already registered for base %q", ErrQueryCompilation, key, base)
	}

	e.composite[key] = st.New

	// Single-label fallbacks: first registration wins, composite lookups
	// always take precedence anyway.
	for _, l := range st.Labels {
		if _, taken := e.single[l]; !taken {
			e.single[l] = st.New
		}
	}

	if st.Discriminator != "" {
		if _, taken := e.discriminator[st.Discriminator]; !taken {
			e.discriminator[st.Discriminator] = st.New
		}
	}

	return nil
}

// resolve picks a constructor for the label set actually present on a
// node. Composite key beats single label beats discriminator beats the
// base fragment's own constructor; an abstract base with nothing
// registered for the labels fails.
func (r *subtypeRegistry) resolve(frag *NodeFragment, labels []string, props map[string]any) (func() any, error) {
	if e := r.entries[frag.Name]; e != nil {
		if len(labels) > 0 {
			if f := e.composite[compositeLabelKey(labels)]; f != nil {
				return f, nil
			}

			sorted := slices.Clone(labels)
			slices.Sort(sorted)

			for _, l := range sorted {
				if f := e.single[l]; f != nil {
					return f, nil
				}
			}
		}

		if frag.Discriminator != "" {
			if v, ok := props[frag.Discriminator].(string); ok {
				if f := e.discriminator[v]; f != nil {
					return f, nil
				}
			}
		}
	}

	if frag.New != nil {
		return frag.New, nil
	}

	return nil, fmt.Errorf("%w: no concrete type registered for labels %v of fragment %q", ErrDeserialization, labels, frag.Name)
}
