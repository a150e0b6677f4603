package graphom_test

import (
	"errors"
	"testing"

	"github.com/hemanta212/graphom"
)

func TestNewModelValidation(t *testing.T) {
	user := graphom.NodeFragment{
		Name:     "User",
		Labels:   []string{"User"},
		Identity: graphom.Property{Name: "id", Field: "ID"},
		Properties: []graphom.Property{
			{Name: "name"},
		},
	}

	tests := []struct {
		name      string
		fragments []graphom.NodeFragment
		views     []graphom.View
	}{
		{
			name:      "fragment without labels",
			fragments: []graphom.NodeFragment{{Name: "Bare", Identity: graphom.Property{Name: "id"}}},
		},
		{
			name:      "fragment without identity",
			fragments: []graphom.NodeFragment{{Name: "Bare", Labels: []string{"Bare"}}},
		},
		{
			name: "duplicate fragment name",
			fragments: []graphom.NodeFragment{
				user,
				{Name: "User", Labels: []string{"Person"}, Identity: graphom.Property{Name: "id"}},
			},
		},
		{
			name: "duplicate property name",
			fragments: []graphom.NodeFragment{{
				Name:     "Bare",
				Labels:   []string{"Bare"},
				Identity: graphom.Property{Name: "id"},
				Properties: []graphom.Property{
					{Name: "name"},
					{Name: "name"},
				},
			}},
		},
		{
			name:      "view roots unknown fragment",
			fragments: []graphom.NodeFragment{user},
			views:     []graphom.View{{Name: "Ghost", Root: "Ghost"}},
		},
		{
			name:      "relationship targets unknown descriptor",
			fragments: []graphom.NodeFragment{user},
			views: []graphom.View{{
				Name: "UserView",
				Root: "User",
				Relationships: []graphom.Relationship{
					{Name: "manager", Type: "REPORTS_TO", Target: "Ghost"},
				},
			}},
		},
		{
			name:      "relationship without edge type",
			fragments: []graphom.NodeFragment{user},
			views: []graphom.View{{
				Name: "UserView",
				Root: "User",
				Relationships: []graphom.Relationship{
					{Name: "manager", Target: "User"},
				},
			}},
		},
		{
			name:      "duplicate relationship alias",
			fragments: []graphom.NodeFragment{user},
			views: []graphom.View{{
				Name: "UserView",
				Root: "User",
				Relationships: []graphom.Relationship{
					{Name: "manager", Type: "REPORTS_TO", Target: "User"},
					{Name: "manager", Type: "MANAGES", Target: "User"},
				},
			}},
		},
		{
			name:      "sort property not declared on the target",
			fragments: []graphom.NodeFragment{user},
			views: []graphom.View{{
				Name: "UserView",
				Root: "User",
				Relationships: []graphom.Relationship{
					{
						Name:        "reports",
						Type:        "REPORTS_TO",
						Target:      "User",
						Cardinality: graphom.Collection,
						Sort:        &graphom.SortSpec{Property: "salary"},
					},
				},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graphom.NewModel(tt.fragments, tt.views)
			if !errors.Is(err, graphom.ErrConfiguration) {
				t.Errorf("NewModel() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNewModelDefaults(t *testing.T) {
	m, err := graphom.NewModel(
		[]graphom.NodeFragment{{
			Name:     "Account",
			Labels:   []string{"Account"},
			Identity: graphom.Property{Name: "id", Field: "ID"},
			Properties: []graphom.Property{
				{Name: "displayName"},
			},
		}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	frag := m.Fragment("Account")
	if frag == nil {
		t.Fatal("Fragment(Account) = nil")
	}

	// Field names default to the property name with an upper-cased first
	// rune.
	if got, want := frag.Properties[0].Field, "DisplayName"; got != want {
		t.Errorf("Properties[0].Field = %q, want %q", got, want)
	}

	// A fragment without a declared view still compiles, under a
	// lower-cased synthetic alias.
	cq, err := m.Compile("Account", []graphom.Condition{graphom.Where("account.displayName").Eq("x")}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if got, want := cq.Where, "account.displayName = $param_account_displayName_0"; got != want {
		t.Errorf("Where = %q, want %q", got, want)
	}
}

func TestRegisterSubtypeUnknownBase(t *testing.T) {
	m, err := graphom.NewModel(
		[]graphom.NodeFragment{{
			Name:     "Account",
			Labels:   []string{"Account"},
			Identity: graphom.Property{Name: "id", Field: "ID"},
		}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	err = m.RegisterSubtype("Ghost", []string{"Ghost"}, func() any { return nil })
	if !errors.Is(err, graphom.ErrConfiguration) {
		t.Errorf("RegisterSubtype() error = %v, want ErrConfiguration", err)
	}
}
