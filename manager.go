package graphom

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Executor runs a single parameterized statement against the graph
// database and returns its rows. Transport, pooling and transaction
// boundaries live behind this interface; see databases/neo4j for the
// driver-backed implementation.
type Executor interface {
	Execute(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error)
}

// Store wires a Model to an Executor. It is safe to share across
// concurrent units of work; sessions are not.
type Store struct {
	model *Model
	exec  Executor
	log   *zap.Logger
	ids   IdentityGenerator
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger statements are traced to.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithIdentityGenerator overrides the generator used for objects saved
// without an identity.
func WithIdentityGenerator(g IdentityGenerator) StoreOption {
	return func(s *Store) { s.ids = g }
}

// NewStore creates a store over the given model and executor.
func NewStore(model *Model, exec Executor, opts ...StoreOption) *Store {
	s := &Store{
		model: model,
		exec:  exec,
		log:   zap.NewNop(),
		ids:   UUIDGenerator{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Model returns the store's descriptor registry.
func (s *Store) Model() *Model { return s.model }

// NewSession starts a unit of work with empty snapshots.
func (s *Store) NewSession() *Session {
	return &Session{store: s, snapshots: make(map[snapshotKey]*objectState)}
}

// execute runs one statement, logging it and wrapping executor failures
// in an ExecutionError annotated with the statement and parameters.
func (s *Store) execute(ctx context.Context, text string, params map[string]any) ([]map[string]any, error) {
	s.log.Debug("executing statement",
		zap.String("statement", text),
		zap.Any("parameters", params),
	)

	rows, err := s.exec.Execute(ctx, text, params)
	if err != nil {
		s.log.Error("statement failed", zap.String("statement", text), zap.Error(err))

		return nil, &ExecutionError{Statement: text, Parameters: params, Err: err}
	}

	s.log.Debug("statement done", zap.Int("rows", len(rows)))

	return rows, nil
}

// Manager is the typed load/save surface over one fragment or view. T is
// usually a pointer type (or an interface for polymorphic hierarchies).
type Manager[T any] struct {
	session *Session
	view    *View
	frag    *NodeFragment
}

// Manage opens a typed manager for the named fragment or view within the
// session.
func Manage[T any](sess *Session, name string) (*Manager[T], error) {
	view, frag, err := sess.store.model.viewFor(name)
	if err != nil {
		return nil, err
	}

	return &Manager[T]{session: sess, view: view, frag: frag}, nil
}

func (m *Manager[T]) store() *Store { return m.session.store }

// Load fetches the object with the given identity. It returns ErrNotFound
// when no node matches and ErrCardinality when more than one does.
func (m *Manager[T]) Load(ctx context.Context, id any) (T, error) {
	var zero T

	cond := Where(m.view.Alias + "." + m.frag.Identity.Name).Eq(id)

	objs, err := m.loadWhere(ctx, []Condition{cond}, nil)
	if err != nil {
		return zero, err
	}

	switch len(objs) {
	case 0:
		return zero, fmt.Errorf("%w: %s with identity %v", ErrNotFound, m.frag.Name, id)
	case 1:
		return objs[0], nil
	default:
		return zero, fmt.Errorf("%w: expected one %s for identity %v, got %d", ErrCardinality, m.frag.Name, id, len(objs))
	}
}

// Find fetches the object with the given identity, or the zero value when
// no node matches. More than one match is still ErrCardinality.
func (m *Manager[T]) Find(ctx context.Context, id any) (T, error) {
	obj, err := m.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		var zero T

		return zero, nil
	}

	return obj, err
}

// LoadAll fetches every object matching the filter, in the filter's
// root-level order. A nil filter loads everything.
func (m *Manager[T]) LoadAll(ctx context.Context, filter *Filter) ([]T, error) {
	conds, orders := splitFilter(filter)

	return m.loadWhere(ctx, conds, orders)
}

// Count returns the number of root nodes matching the filter.
func (m *Manager[T]) Count(ctx context.Context, filter *Filter) (int, error) {
	conds, _ := splitFilter(filter)

	cq, err := m.store().model.compile(m.view, conds, nil)
	if err != nil {
		return 0, err
	}

	rows, err := m.store().execute(ctx, buildCountStatement(m.view, m.frag, cq), cq.Parameters)
	if err != nil {
		return 0, err
	}

	return intResult(rows, "count")
}

// Save writes obj's diff against its session snapshot: new objects in
// full, loaded ones as a partial update plus relationship set changes
// handled per the cascade policy. A save with no changes issues no
// statements. The generated identity, if one was needed, is set on the
// returned object.
func (m *Manager[T]) Save(ctx context.Context, obj T, cascade Cascade) (T, error) {
	idv, err := readField(obj, m.frag.Identity.Field)
	if err != nil {
		return obj, err
	}

	if isZeroValue(idv) {
		if err := writeField(obj, m.frag.Identity.Field, m.store().ids.NewID()); err != nil {
			return obj, err
		}
	}

	cur, err := m.session.stateOf(m.view, m.frag, obj)
	if err != nil {
		return obj, err
	}

	cs := m.session.diff(obj, cur)
	if cs.empty() {
		m.store().log.Debug("save is a no-op", zap.String("fragment", m.frag.Name))

		return obj, nil
	}

	plan, err := buildSavePlan(m.store().model, m.frag, cs, cascade, obj)
	if err != nil {
		return obj, err
	}

	for _, stmt := range plan.Statements {
		if _, err := m.store().execute(ctx, stmt.Text, stmt.Parameters); err != nil {
			return obj, err
		}
	}

	// Replace the snapshot with the post-save state so a repeated save
	// with no mutations is a no-op.
	m.session.put(obj, cur)

	return obj, nil
}

// Delete removes the object with the given identity, optionally narrowed
// by extra conditions, and returns the number of nodes deleted.
func (m *Manager[T]) Delete(ctx context.Context, id any, extra ...Condition) (int, error) {
	conds := append([]Condition{Where(m.view.Alias + "." + m.frag.Identity.Name).Eq(id)}, extra...)

	n, err := m.deleteWhere(ctx, conds)
	if err != nil {
		return 0, err
	}

	var zero T

	m.session.forget(zero, id)

	return n, nil
}

// DeleteAll removes every root node matching the filter and returns the
// count. A nil filter deletes every node of the fragment.
func (m *Manager[T]) DeleteAll(ctx context.Context, filter *Filter) (int, error) {
	conds, _ := splitFilter(filter)

	return m.deleteWhere(ctx, conds)
}

func (m *Manager[T]) loadWhere(ctx context.Context, conds []Condition, orders []OrderSpec) ([]T, error) {
	store := m.store()

	cq, err := store.model.compile(m.view, conds, orders)
	if err != nil {
		return nil, err
	}

	rows, err := store.execute(ctx, buildLoadStatement(store.model, m.view, m.frag, cq), cq.Parameters)
	if err != nil {
		return nil, err
	}

	h := hydrator{model: store.model}
	out := make([]T, 0, len(rows))

	for _, row := range rows {
		obj, err := h.materializeRow(m.view, m.frag, row)
		if err != nil {
			return nil, err
		}

		if err := h.applyCollectionSorts(m.view, obj, cq.CollectionSorts); err != nil {
			return nil, err
		}

		t, ok := obj.(T)
		if !ok {
			return nil, fmt.Errorf("%w: materialized %T is not a %T", ErrDeserialization, obj, *new(T))
		}

		if err := m.session.track(m.view, m.frag, obj); err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}

func (m *Manager[T]) deleteWhere(ctx context.Context, conds []Condition) (int, error) {
	store := m.store()

	cq, err := store.model.compile(m.view, conds, nil)
	if err != nil {
		return 0, err
	}

	rows, err := store.execute(ctx, buildDeleteStatement(m.view, m.frag, cq), cq.Parameters)
	if err != nil {
		return 0, err
	}

	return intResult(rows, "deleted")
}

func splitFilter(f *Filter) ([]Condition, []OrderSpec) {
	if f == nil {
		return nil, nil
	}

	return f.Conditions, f.Orders
}

func intResult(rows []map[string]any, key string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	switch v := rows[0][key].(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: expected integer %q, got %T", ErrDeserialization, key, rows[0][key])
	}
}
