// Package neo4j provides a graphom Executor backed by the official Neo4j
// Go driver.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/semaphore"

	"github.com/hemanta212/graphom"
)

// defaultMaxSessions caps concurrently open driver sessions.
const defaultMaxSessions = 100

// Database implements graphom.Executor over a driver connection pool.
// Each Execute call runs in its own session; Begin opens an explicit
// transaction for callers that need multi-statement atomicity (cascade
// plans, most notably).
type Database struct {
	driver   neo4j.DriverWithContext
	db       string
	sessions *semaphore.Weighted
}

// Option configures a Database.
type Option func(*Database)

// WithMaxSessions overrides the concurrent session cap.
func WithMaxSessions(n int64) Option {
	return func(d *Database) { d.sessions = semaphore.NewWeighted(n) }
}

// New creates a new Neo4j connection from the given configuration and
// verifies connectivity.
func New(ctx context.Context, cfg *graphom.Neo4jConfig, opts ...Option) (*Database, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}

	d := &Database{
		driver:   driver,
		db:       cfg.Database,
		sessions: semaphore.NewWeighted(defaultMaxSessions),
	}

	for _, opt := range opts {
		opt(d)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		_ = driver.Close(ctx)

		return nil, fmt.Errorf("neo4j: failed to connect: %w", err)
	}

	return d, nil
}

func (d *Database) sessionConfig() neo4j.SessionConfig {
	cfg := neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite}
	if d.db != "" {
		cfg.DatabaseName = d.db
	}

	return cfg
}

// Execute runs one statement in a fresh session and returns its rows.
func (d *Database) Execute(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	if err := d.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("neo4j: failed to acquire session: %w", err)
	}
	defer d.sessions.Release(1)

	session := d.driver.NewSession(ctx, d.sessionConfig())
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, statement, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: query execution failed: %w", err)
	}

	return collectRows(ctx, result)
}

// Close releases the driver's connection pool.
func (d *Database) Close(ctx context.Context) error {
	err := d.driver.Close(ctx)
	if err != nil {
		return fmt.Errorf("neo4j: failed to close driver: %w", err)
	}

	return nil
}

// Begin starts an explicit transaction. The session it holds is released
// on Commit or Rollback.
func (d *Database) Begin(ctx context.Context) (*Transaction, error) {
	if err := d.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("neo4j: failed to acquire session: %w", err)
	}

	session := d.driver.NewSession(ctx, d.sessionConfig())

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		d.sessions.Release(1)

		return nil, fmt.Errorf("neo4j: failed to begin transaction: %w", err)
	}

	return &Transaction{db: d, session: session, tx: tx}, nil
}

// Transaction is a graphom.Executor bound to one explicit transaction.
type Transaction struct {
	db      *Database
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

// Execute runs one statement within this transaction.
func (t *Transaction) Execute(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	result, err := t.tx.Run(ctx, statement, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: query execution failed: %w", err)
	}

	return collectRows(ctx, result)
}

// Commit commits the transaction and releases its session.
func (t *Transaction) Commit(ctx context.Context) error {
	defer t.release(ctx)

	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("neo4j: failed to commit: %w", err)
	}

	return nil
}

// Rollback aborts the transaction and releases its session.
func (t *Transaction) Rollback(ctx context.Context) error {
	defer t.release(ctx)

	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("neo4j: failed to rollback: %w", err)
	}

	return nil
}

func (t *Transaction) release(ctx context.Context) {
	_ = t.session.Close(ctx)
	t.db.sessions.Release(1)
}

// collectRows converts driver records into the row contract: one map per
// record, keyed by the record's return aliases. Node and relationship
// values pass through as driver types; the hydrator understands them.
func collectRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]any, error) {
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to collect results: %w", err)
	}

	rows := make([]map[string]any, len(records))

	for i, record := range records {
		row := make(map[string]any, len(record.Keys))
		for j, key := range record.Keys {
			row[key] = record.Values[j]
		}

		rows[i] = row
	}

	return rows, nil
}

// Compile-time interface checks.
var (
	_ graphom.Executor = (*Database)(nil)
	_ graphom.Executor = (*Transaction)(nil)
)
