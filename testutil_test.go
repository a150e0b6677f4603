package graphom

import "testing"

// Shared fixture for the in-package tests: an issue tracker with one
// collection relationship and one nested view.

type testIssue struct {
	ID       string
	State    string
	Weight   int64
	Title    string
	Assignee *testUser
	Author   *testUser
	Employer *testOrg
	Sponsor  *testOrg
}

type testUser struct {
	ID    string
	Name  string
	Email string
}

type testOrg struct {
	ID      string
	Name    string
	Members []*testUser
}

func newTestModel(t *testing.T) *Model {
	t.Helper()

	m, err := NewModel(
		[]NodeFragment{
			{
				Name:     "Issue",
				Labels:   []string{"Issue"},
				Identity: Property{Name: "id", Field: "ID"},
				Properties: []Property{
					{Name: "state"},
					{Name: "weight"},
					{Name: "title"},
				},
				New: func() any { return &testIssue{} },
			},
			{
				Name:     "User",
				Labels:   []string{"User"},
				Identity: Property{Name: "id", Field: "ID"},
				Properties: []Property{
					{Name: "name"},
					{Name: "email"},
				},
				New: func() any { return &testUser{} },
			},
			{
				Name:     "Org",
				Labels:   []string{"Org"},
				Identity: Property{Name: "id", Field: "ID"},
				Properties: []Property{
					{Name: "name"},
				},
				New: func() any { return &testOrg{} },
			},
		},
		[]View{
			{
				Name: "Issue",
				Root: "Issue",
				Relationships: []Relationship{
					{Name: "assignee", Type: "ASSIGNED_TO", Target: "User", Optional: true},
					{Name: "employer", Type: "EMPLOYED_BY", Target: "Org", Optional: true},
				},
			},
			{
				Name: "Org",
				Root: "Org",
				Relationships: []Relationship{
					{
						Name:        "members",
						Type:        "HAS_MEMBER",
						Target:      "User",
						Cardinality: Collection,
						Sort:        &SortSpec{Property: "name", Ascending: true},
					},
				},
			},
			{
				Name: "Report",
				Root: "Issue",
				Relationships: []Relationship{
					{Name: "author", Type: "AUTHORED_BY", Target: "User"},
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	return m
}

// newDiamondModel declares two sibling relationships from the issue view
// into the same org view, so repeated-view traversal has coverage.
func newDiamondModel(t *testing.T) *Model {
	t.Helper()

	m, err := NewModel(
		[]NodeFragment{
			{
				Name:     "Issue",
				Labels:   []string{"Issue"},
				Identity: Property{Name: "id", Field: "ID"},
				New:      func() any { return &testIssue{} },
			},
			{
				Name:     "User",
				Labels:   []string{"User"},
				Identity: Property{Name: "id", Field: "ID"},
				Properties: []Property{
					{Name: "name"},
				},
				New: func() any { return &testUser{} },
			},
			{
				Name:     "Org",
				Labels:   []string{"Org"},
				Identity: Property{Name: "id", Field: "ID"},
				Properties: []Property{
					{Name: "name"},
				},
				New: func() any { return &testOrg{} },
			},
		},
		[]View{
			{
				Name: "Issue",
				Root: "Issue",
				Relationships: []Relationship{
					{Name: "employer", Type: "EMPLOYED_BY", Target: "Org", Optional: true},
					{Name: "sponsor", Type: "SPONSORED_BY", Target: "Org", Optional: true},
				},
			},
			{
				Name: "Org",
				Root: "Org",
				Relationships: []Relationship{
					{Name: "members", Type: "HAS_MEMBER", Target: "User", Cardinality: Collection},
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	return m
}

func userRow(id, name string) map[string]any {
	return map[string]any{
		"id":     id,
		"name":   name,
		"labels": []any{"User"},
	}
}
