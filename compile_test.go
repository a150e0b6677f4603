package graphom_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hemanta212/graphom"
)

// trackerModel builds the descriptor set the query tests share: issues
// with an optional assignee and an optional employer view, orgs with a
// member collection, and a report view whose author is required.
func trackerModel(t *testing.T) *graphom.Model {
	t.Helper()

	m, err := graphom.NewModel(
		[]graphom.NodeFragment{
			{
				Name:     "Issue",
				Labels:   []string{"Issue"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
				Properties: []graphom.Property{
					{Name: "state"},
					{Name: "weight"},
					{Name: "title"},
				},
			},
			{
				Name:     "User",
				Labels:   []string{"User"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
				Properties: []graphom.Property{
					{Name: "name"},
					{Name: "email"},
				},
			},
			{
				Name:     "Org",
				Labels:   []string{"Org"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
				Properties: []graphom.Property{
					{Name: "name"},
				},
			},
		},
		[]graphom.View{
			{
				Name: "Issue",
				Root: "Issue",
				Relationships: []graphom.Relationship{
					{Name: "assignee", Type: "ASSIGNED_TO", Target: "User", Optional: true},
					{Name: "employer", Type: "EMPLOYED_BY", Target: "Org", Optional: true},
				},
			},
			{
				Name: "Org",
				Root: "Org",
				Relationships: []graphom.Relationship{
					{Name: "members", Type: "HAS_MEMBER", Target: "User", Cardinality: graphom.Collection},
				},
			},
			{
				Name: "Report",
				Root: "Issue",
				Relationships: []graphom.Relationship{
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

func TestCompile(t *testing.T) {
	m := trackerModel(t)

	tests := []struct {
		name   string
		target string
		conds  []graphom.Condition
		orders []graphom.OrderSpec
		want   graphom.CompiledQuery
	}{
		{
			name:   "root property equality",
			target: "Issue",
			conds:  []graphom.Condition{graphom.Where("issue.state").Eq("closed")},
			want: graphom.CompiledQuery{
				Where:      "issue.state = $param_issue_state_0",
				Parameters: map[string]any{"param_issue_state_0": "closed"},
			},
		},
		{
			name:   "and joins siblings",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Where("issue.state").Eq("closed"),
				graphom.Where("issue.weight").Gte(5),
			},
			want: graphom.CompiledQuery{
				Where: "issue.state = $param_issue_state_0 AND issue.weight >= $param_issue_weight_1",
				Parameters: map[string]any{
					"param_issue_state_0":  "closed",
					"param_issue_weight_1": 5,
				},
			},
		},
		{
			name:   "or group is parenthesized and binds distinct parameters",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Or(
					graphom.Where("issue.state").Eq("open"),
					graphom.Where("issue.state").Eq("stale"),
				),
			},
			want: graphom.CompiledQuery{
				Where: "(issue.state = $param_issue_state_0 OR issue.state = $param_issue_state_1)",
				Parameters: map[string]any{
					"param_issue_state_0": "open",
					"param_issue_state_1": "stale",
				},
			},
		},
		{
			name:   "nested or groups nest their parentheses",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Or(
					graphom.Where("issue.state").Eq("open"),
					graphom.Or(
						graphom.Where("issue.weight").Gt(3),
						graphom.Where("issue.weight").IsNull(),
					),
				),
			},
			want: graphom.CompiledQuery{
				Where: "(issue.state = $param_issue_state_0 OR (issue.weight > $param_issue_weight_1 OR issue.weight IS NULL))",
				Parameters: map[string]any{
					"param_issue_state_0":  "open",
					"param_issue_weight_1": 3,
				},
			},
		},
		{
			name:   "null checks bind no parameter",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Where("issue.weight").IsNull(),
				graphom.Where("issue.title").IsNotNull(),
			},
			want: graphom.CompiledQuery{
				Where:      "issue.weight IS NULL AND issue.title IS NOT NULL",
				Parameters: map[string]any{},
			},
		},
		{
			name:   "in membership",
			target: "Issue",
			conds:  []graphom.Condition{graphom.Where("issue.state").In("open", "stale")},
			want: graphom.CompiledQuery{
				Where:      "issue.state IN $param_issue_state_0",
				Parameters: map[string]any{"param_issue_state_0": []any{"open", "stale"}},
			},
		},
		{
			name:   "label condition on the root",
			target: "Issue",
			conds:  []graphom.Condition{graphom.HasLabels("issue", "Issue", "Critical")},
			want: graphom.CompiledQuery{
				Where:      "issue:Issue:Critical",
				Parameters: map[string]any{},
			},
		},
		{
			name:   "relationship property groups into an existence check",
			target: "Issue",
			conds:  []graphom.Condition{graphom.Where("assignee.name").Eq("maya")},
			want: graphom.CompiledQuery{
				Where:      "EXISTS { MATCH (issue)-[:ASSIGNED_TO]->(assignee:User) WHERE assignee.name = $param_assignee_name_0 }",
				Parameters: map[string]any{"param_assignee_name_0": "maya"},
			},
		},
		{
			name:   "two conditions on one relationship share the check",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Where("assignee.name").Eq("maya"),
				graphom.Where("assignee.email").EndsWith("@example.com"),
			},
			want: graphom.CompiledQuery{
				Where: "EXISTS { MATCH (issue)-[:ASSIGNED_TO]->(assignee:User) WHERE assignee.name = $param_assignee_name_0 AND assignee.email ENDS WITH $param_assignee_email_1 }",
				Parameters: map[string]any{
					"param_assignee_name_0":  "maya",
					"param_assignee_email_1": "@example.com",
				},
			},
		},
		{
			name:   "nested alias compiles to nested existence checks",
			target: "Issue",
			conds:  []graphom.Condition{graphom.Where("employer_members.name").Eq("rohan")},
			want: graphom.CompiledQuery{
				Where:      "EXISTS { MATCH (issue)-[:EMPLOYED_BY]->(employer:Org) WHERE EXISTS { MATCH (employer)-[:HAS_MEMBER]->(employer_members:User) WHERE employer_members.name = $param_employer_members_name_0 } }",
				Parameters: map[string]any{"param_employer_members_name_0": "rohan"},
			},
		},
		{
			name:   "required relationship adds an unconditional existence check",
			target: "Report",
			want: graphom.CompiledQuery{
				Where:      "EXISTS { MATCH (issue)-[:AUTHORED_BY]->(author:User) }",
				Parameters: map[string]any{},
			},
		},
		{
			name:   "required check is skipped when the filter already covers it",
			target: "Report",
			conds:  []graphom.Condition{graphom.Where("author.name").Eq("maya")},
			want: graphom.CompiledQuery{
				Where:      "EXISTS { MATCH (issue)-[:AUTHORED_BY]->(author:User) WHERE author.name = $param_author_name_0 }",
				Parameters: map[string]any{"param_author_name_0": "maya"},
			},
		},
		{
			name:   "or branch on a relationship promotes to an existence check",
			target: "Issue",
			conds: []graphom.Condition{
				graphom.Or(
					graphom.Where("issue.state").Eq("open"),
					graphom.Where("assignee.name").Eq("maya"),
				),
			},
			want: graphom.CompiledQuery{
				Where: "(issue.state = $param_issue_state_0 OR EXISTS { MATCH (issue)-[:ASSIGNED_TO]->(assignee:User) WHERE assignee.name = $param_assignee_name_1 })",
				Parameters: map[string]any{
					"param_issue_state_0":   "open",
					"param_assignee_name_1": "maya",
				},
			},
		},
		{
			name:   "root order compiles into ORDER BY",
			target: "Issue",
			orders: []graphom.OrderSpec{graphom.Asc("issue.title"), graphom.Desc("issue.weight")},
			want: graphom.CompiledQuery{
				OrderBy:    "issue.title ASC, issue.weight DESC",
				Parameters: map[string]any{},
			},
		},
		{
			name:   "relationship order becomes a collection sort directive",
			target: "Issue",
			orders: []graphom.OrderSpec{graphom.Asc("employer_members.name")},
			want: graphom.CompiledQuery{
				Parameters: map[string]any{},
				CollectionSorts: []graphom.CollectionSort{
					{RelationshipPath: "employer_members", Property: "name", Ascending: true},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Compile(tt.target, tt.conds, tt.orders)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("Compile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileRequiredPropagationSiblingViews(t *testing.T) {
	m, err := graphom.NewModel(
		[]graphom.NodeFragment{
			{
				Name:     "Issue",
				Labels:   []string{"Issue"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
			},
			{
				Name:       "Project",
				Labels:     []string{"Project"},
				Identity:   graphom.Property{Name: "id", Field: "ID"},
				Properties: []graphom.Property{{Name: "name"}},
			},
			{
				Name:     "Org",
				Labels:   []string{"Org"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
			},
			{
				Name:     "User",
				Labels:   []string{"User"},
				Identity: graphom.Property{Name: "id", Field: "ID"},
			},
		},
		[]graphom.View{
			{
				Name: "Issue",
				Root: "Issue",
				Relationships: []graphom.Relationship{
					{Name: "project", Type: "HAS_PROJECT", Target: "Project", Optional: true},
				},
			},
			{
				Name: "Project",
				Root: "Project",
				Relationships: []graphom.Relationship{
					{Name: "employer", Type: "EMPLOYED_BY", Target: "Org"},
					{Name: "sponsor", Type: "SPONSORED_BY", Target: "Org"},
				},
			},
			{
				Name: "Org",
				Root: "Org",
				Relationships: []graphom.Relationship{
					{Name: "owner", Type: "OWNED_BY", Target: "User"},
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	got, err := m.Compile("Issue", []graphom.Condition{graphom.Where("project.name").Eq("atlas")}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	// Both required siblings into the org view propagate their own
	// nested owner check.
	want := "EXISTS { MATCH (issue)-[:HAS_PROJECT]->(project:Project) WHERE project.name = $param_project_name_0" +
		" AND EXISTS { MATCH (project)-[:EMPLOYED_BY]->(project_employer:Org) WHERE EXISTS { MATCH (project_employer)-[:OWNED_BY]->(project_employer_owner:User) } }" +
		" AND EXISTS { MATCH (project)-[:SPONSORED_BY]->(project_sponsor:Org) WHERE EXISTS { MATCH (project_sponsor)-[:OWNED_BY]->(project_sponsor_owner:User) } } }"

	if got.Where != want {
		t.Errorf("Where =\n%s\nwant:\n%s", got.Where, want)
	}
}

func TestCompileLabelConditionInsideRelationshipOr(t *testing.T) {
	m := trackerModel(t)

	got, err := m.Compile("Issue", []graphom.Condition{
		graphom.RelationshipCondition{Alias: "assignee", Conditions: []graphom.Condition{
			graphom.Or(
				graphom.HasLabels("assignee", "Admin"),
				graphom.Where("assignee.name").Eq("maya"),
			),
		}},
	}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := "EXISTS { MATCH (issue)-[:ASSIGNED_TO]->(assignee:User) WHERE (assignee:Admin OR assignee.name = $param_assignee_name_0) }"
	if got.Where != want {
		t.Errorf("Where = %q, want %q", got.Where, want)
	}
}

func TestCompileLabelConditionInsideRelationshipOrRejectsForeignAlias(t *testing.T) {
	m := trackerModel(t)

	_, err := m.Compile("Issue", []graphom.Condition{
		graphom.RelationshipCondition{Alias: "assignee", Conditions: []graphom.Condition{
			graphom.Or(
				graphom.HasLabels("ghost", "Admin"),
				graphom.Where("assignee.name").Eq("maya"),
			),
		}},
	}, nil)
	if !errors.Is(err, graphom.ErrConfiguration) {
		t.Errorf("Compile() error = %v, want ErrConfiguration", err)
	}
}

func TestCompileDeterministic(t *testing.T) {
	m := trackerModel(t)

	conds := []graphom.Condition{
		graphom.Where("issue.state").Eq("open"),
		graphom.Where("assignee.name").Eq("maya"),
		graphom.Or(
			graphom.Where("issue.weight").Gt(3),
			graphom.Where("issue.weight").IsNull(),
		),
	}

	first, err := m.Compile("Issue", conds, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	second, err := m.Compile("Issue", conds, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated compilation differs (-first +second):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	m := trackerModel(t)

	tests := []struct {
		name    string
		target  string
		conds   []graphom.Condition
		orders  []graphom.OrderSpec
		wantErr error
	}{
		{
			name:    "unknown target",
			target:  "Ghost",
			wantErr: graphom.ErrConfiguration,
		},
		{
			name:    "unknown alias",
			target:  "Issue",
			conds:   []graphom.Condition{graphom.Where("ghost.name").Eq("x")},
			wantErr: graphom.ErrConfiguration,
		},
		{
			name:    "path without property",
			target:  "Issue",
			conds:   []graphom.Condition{graphom.Where("issue").Eq("x")},
			wantErr: graphom.ErrConfiguration,
		},
		{
			name:    "nested filter into a plain fragment",
			target:  "Issue",
			conds:   []graphom.Condition{graphom.Where("assignee_manager.name").Eq("x")},
			wantErr: graphom.ErrQueryCompilation,
		},
		{
			name:    "order path without alias",
			target:  "Issue",
			orders:  []graphom.OrderSpec{graphom.Asc("title")},
			wantErr: graphom.ErrConfiguration,
		},
		{
			name:    "order on unknown relationship",
			target:  "Issue",
			orders:  []graphom.OrderSpec{graphom.Asc("ghost.title")},
			wantErr: graphom.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Compile(tt.target, tt.conds, tt.orders)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
