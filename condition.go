package graphom

import "strings"

// Operator enumerates the comparison operators a property condition may
// carry. The string value is the Cypher rendering.
type Operator string

// Operators.
const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpContains     Operator = "CONTAINS"
	OpStartsWith   Operator = "STARTS WITH"
	OpEndsWith     Operator = "ENDS WITH"
	OpMatches      Operator = "=~"
	OpIn           Operator = "IN"
	OpIsNull       Operator = "IS NULL"
	OpIsNotNull    Operator = "IS NOT NULL"
)

// takesValue reports whether the operator binds a parameter.
func (o Operator) takesValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// Condition is one node of a filter tree. The variant set is closed:
// [PropertyCondition], [RelationshipCondition], [LabelCondition] and
// [OrCondition].
type Condition interface{ isCondition() }

// PropertyCondition compares one alias-qualified property against a bound
// value. Path is always "alias.property".
type PropertyCondition struct {
	Path  string
	Op    Operator
	Value any
}

// RelationshipCondition wraps conditions on a relationship's target in an
// existence check for that relationship. Loose property conditions whose
// alias names a declared relationship are grouped into one of these
// immediately before compilation.
type RelationshipCondition struct {
	Alias      string
	Conditions []Condition
}

// LabelCondition asserts that the aliased node carries the full label set,
// i.e. "is exactly subtype T".
type LabelCondition struct {
	Alias  string
	Labels []string
}

// OrCondition joins sibling conditions with OR. It compiles to a fully
// parenthesized group and may nest arbitrarily.
type OrCondition struct {
	Conditions []Condition
}

func (PropertyCondition) isCondition()     {}
func (RelationshipCondition) isCondition() {}
func (LabelCondition) isCondition()        {}
func (OrCondition) isCondition()           {}

// PathBuilder builds property conditions for one alias-qualified path.
type PathBuilder struct {
	path string
}

// Where starts a condition on an alias-qualified property path, e.g.
// Where("issue.state").Eq("closed").
func Where(path string) PathBuilder { return PathBuilder{path: path} }

// Eq compares for equality.
func (b PathBuilder) Eq(v any) Condition { return PropertyCondition{b.path, OpEqual, v} }

// Ne compares for inequality.
func (b PathBuilder) Ne(v any) Condition { return PropertyCondition{b.path, OpNotEqual, v} }

// Gt compares with >.
func (b PathBuilder) Gt(v any) Condition { return PropertyCondition{b.path, OpGreater, v} }

// Gte compares with >=.
func (b PathBuilder) Gte(v any) Condition { return PropertyCondition{b.path, OpGreaterEqual, v} }

// Lt compares with <.
func (b PathBuilder) Lt(v any) Condition { return PropertyCondition{b.path, OpLess, v} }

// Lte compares with <=.
func (b PathBuilder) Lte(v any) Condition { return PropertyCondition{b.path, OpLessEqual, v} }

// Contains matches substrings.
func (b PathBuilder) Contains(v string) Condition { return PropertyCondition{b.path, OpContains, v} }

// StartsWith matches string prefixes.
func (b PathBuilder) StartsWith(v string) Condition {
	return PropertyCondition{b.path, OpStartsWith, v}
}

// EndsWith matches string suffixes.
func (b PathBuilder) EndsWith(v string) Condition { return PropertyCondition{b.path, OpEndsWith, v} }

// Matches applies a regular expression.
func (b PathBuilder) Matches(pattern string) Condition {
	return PropertyCondition{b.path, OpMatches, pattern}
}

// In tests membership in the given values.
func (b PathBuilder) In(values ...any) Condition { return PropertyCondition{b.path, OpIn, values} }

// IsNull tests for absence. No parameter is bound.
func (b PathBuilder) IsNull() Condition { return PropertyCondition{Path: b.path, Op: OpIsNull} }

// IsNotNull tests for presence. No parameter is bound.
func (b PathBuilder) IsNotNull() Condition { return PropertyCondition{Path: b.path, Op: OpIsNotNull} }

// Or groups sibling conditions with OR.
func Or(conds ...Condition) Condition { return OrCondition{Conditions: conds} }

// HasLabels asserts the aliased node carries all the given labels.
func HasLabels(alias string, labels ...string) Condition {
	return LabelCondition{Alias: alias, Labels: labels}
}

// OrderSpec requests ordering by an alias-qualified path. Root-aliased
// specs compile into the ORDER BY clause; relationship-aliased specs
// become collection sort directives applied client-side.
type OrderSpec struct {
	Path      string
	Ascending bool
}

// Asc orders ascending by path.
func Asc(path string) OrderSpec { return OrderSpec{Path: path, Ascending: true} }

// Desc orders descending by path.
func Desc(path string) OrderSpec { return OrderSpec{Path: path} }

// Filter bundles conditions and ordering for LoadAll, DeleteAll and Count.
type Filter struct {
	Conditions []Condition
	Orders     []OrderSpec
}

// NewFilter builds a filter from AND-joined conditions.
func NewFilter(conds ...Condition) *Filter {
	return &Filter{Conditions: conds}
}

// And appends further AND-joined conditions.
func (f *Filter) And(conds ...Condition) *Filter {
	f.Conditions = append(f.Conditions, conds...)
	return f
}

// OrderBy appends ordering requests.
func (f *Filter) OrderBy(specs ...OrderSpec) *Filter {
	f.Orders = append(f.Orders, specs...)
	return f
}

// cutPath splits an "alias.property" path. Aliases never contain dots, so
// the first dot is the separator.
func cutPath(path string) (alias, prop string, ok bool) {
	alias, prop, ok = strings.Cut(path, ".")
	if !ok || alias == "" || prop == "" {
		return "", "", false
	}

	return alias, prop, true
}
