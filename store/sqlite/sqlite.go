/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the recording core's persistence interfaces (record.Store,
  record.TxStore, record.CatalogStore) plus the catalog tables (templates,
  items, products, sessions) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The sample history is append-only:
  - No UPDATE statements on response_samples
  - No DELETE statements on response_samples (outside full Reset)

KEY TABLES:
  templates:        Evaluation templates (versioned, status)
  template_items:   Ordered items per template (kind NUMBER/TEXT/BOOL)
  products:         Evaluation subjects referenced by sessions
  sessions:         One recording session against one template
  responses:        Current value per (session, item) - UNIQUE enforced
  response_samples: Immutable history, one row per item per accepted batch

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  and a single writer at a time proceeds safely.

TIMESTAMPS:
  Stored as fixed-width RFC3339 with millisecond fraction so that lexical
  ordering in SQL matches chronological ordering and batch timestamps
  round-trip exactly. Reconstruction groups samples on that exact value.

USAGE:
  store, err := sqlite.New("./data/eval.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  recorder := record.NewRecorder(store)

SEE ALSO:
  - record/store.go: Interface definitions
  - record/recorder.go: Higher-level batch application using this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/eval-engine/record"
)

// timeLayout keeps millisecond precision and a fixed width, so string
// comparison in SQL orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Evaluation templates
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Ordered items per template
	CREATE TABLE IF NOT EXISTS template_items (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		unit TEXT,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		weight TEXT NOT NULL DEFAULT '1',
		item_order INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_template_items_template
		ON template_items(template_id, item_order);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_template_items_key
		ON template_items(template_id, key);

	-- Products (evaluation subjects)
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		model TEXT,
		created_at TEXT NOT NULL
	);

	-- Sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		template_id TEXT NOT NULL REFERENCES templates(id),
		product_id TEXT REFERENCES products(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created
		ON sessions(created_at DESC);

	-- Current value per (session, item) - at most one row, enforced
	CREATE TABLE IF NOT EXISTS responses (
		session_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		value_json TEXT NOT NULL,
		remark TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session_id, item_id)
	);

	-- Immutable history: one row per item per accepted batch.
	-- No unique constraint on (session_id, item_id) - repeats ARE the history.
	CREATE TABLE IF NOT EXISTS response_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		value_json TEXT NOT NULL,
		remark TEXT,
		sampled_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_session_time
		ON response_samples(session_id, sampled_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer lets the same statements run against the pool or an open transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SNAPSHOT STORE (record.Store interface)
// =============================================================================

// FindSnapshot returns the current snapshot for (sessionID, itemID),
// or nil if none exists.
func (s *Store) FindSnapshot(ctx context.Context, sessionID, itemID string) (*record.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findSnapshot(ctx, s.db, sessionID, itemID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findSnapshot(ctx context.Context, db querier, sessionID, itemID string) (*record.Snapshot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT session_id, item_id, value_json, remark, created_at, updated_at
		FROM responses
		WHERE session_id = ? AND item_id = ?
	`, sessionID, itemID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &record.StorageError{Op: "find snapshot", Err: err}
	}
	return &snap, nil
}

// UpsertSnapshot creates or overwrites the current value for (SessionID, ItemID).
func (s *Store) UpsertSnapshot(ctx context.Context, snap record.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertSnapshot(ctx, s.db, snap)
}

func (s *Store) upsertSnapshot(ctx context.Context, db execer, snap record.Snapshot) error {
	now := time.Now().UTC().Format(timeLayout)

	_, err := db.ExecContext(ctx, `
		INSERT INTO responses (session_id, item_id, value_json, remark, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, item_id) DO UPDATE SET
			value_json = excluded.value_json,
			remark = excluded.remark,
			updated_at = excluded.updated_at
	`, snap.SessionID, snap.ItemID, string(snap.Value), nullString(snap.Remark), now, now)

	if err != nil {
		return wrapWriteError("upsert snapshot", err)
	}
	return nil
}

// ListSnapshots returns all current snapshots for a session, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, sessionID string) ([]record.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, item_id, value_json, remark, created_at, updated_at
		FROM responses
		WHERE session_id = ?
		ORDER BY created_at ASC, item_id ASC
	`, sessionID)
	if err != nil {
		return nil, &record.StorageError{Op: "list snapshots", Err: err}
	}
	defer rows.Close()

	snapshots := make([]record.Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, &record.StorageError{Op: "scan snapshot", Err: err}
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, &record.StorageError{Op: "iterate snapshots", Err: err}
	}
	return snapshots, nil
}

// AppendSamples persists history samples. Pure insert, no merge.
func (s *Store) AppendSamples(ctx context.Context, samples []record.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendSamples(ctx, s.db, samples)
}

func (s *Store) appendSamples(ctx context.Context, db execer, samples []record.Sample) error {
	for _, sample := range samples {
		_, err := db.ExecContext(ctx, `
			INSERT INTO response_samples (session_id, item_id, value_json, remark, sampled_at)
			VALUES (?, ?, ?, ?, ?)
		`, sample.SessionID, sample.ItemID, string(sample.Value),
			nullString(sample.Remark), sample.SampledAt.UTC().Format(timeLayout))
		if err != nil {
			return wrapWriteError("append sample", err)
		}
	}
	return nil
}

// ListSamples returns the full history of a session ordered by sample
// timestamp ascending. Insertion order breaks ties within a batch.
func (s *Store) ListSamples(ctx context.Context, sessionID string) ([]record.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, item_id, value_json, remark, sampled_at
		FROM response_samples
		WHERE session_id = ?
		ORDER BY sampled_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, &record.StorageError{Op: "list samples", Err: err}
	}
	defer rows.Close()

	samples := make([]record.Sample, 0)
	for rows.Next() {
		var (
			sample    record.Sample
			value     string
			remark    sql.NullString
			sampledAt string
		)
		if err := rows.Scan(&sample.SessionID, &sample.ItemID, &value, &remark, &sampledAt); err != nil {
			return nil, &record.StorageError{Op: "scan sample", Err: err}
		}
		sample.Value = []byte(value)
		sample.Remark = remark.String
		sample.SampledAt, _ = time.Parse(timeLayout, sampledAt)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, &record.StorageError{Op: "iterate samples", Err: err}
	}
	return samples, nil
}

// =============================================================================
// TRANSACTIONAL STORE (record.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The recorder
// uses this so one batch's snapshot upserts and sample appends commit or
// abort together.
func (s *Store) WithTx(ctx context.Context, fn func(tx record.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &record.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &record.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) FindSnapshot(ctx context.Context, sessionID, itemID string) (*record.Snapshot, error) {
	return findSnapshot(ctx, ts.tx, sessionID, itemID)
}

func (ts *txStore) UpsertSnapshot(ctx context.Context, snap record.Snapshot) error {
	return ts.parent.upsertSnapshot(ctx, ts.tx, snap)
}

func (ts *txStore) AppendSamples(ctx context.Context, samples []record.Sample) error {
	return ts.parent.appendSamples(ctx, ts.tx, samples)
}

func (ts *txStore) ListSnapshots(ctx context.Context, sessionID string) ([]record.Snapshot, error) {
	return nil, &record.StorageError{Op: "list snapshots", Err: errInsideWriteTx}
}

func (ts *txStore) ListSamples(ctx context.Context, sessionID string) ([]record.Sample, error) {
	return nil, &record.StorageError{Op: "list samples", Err: errInsideWriteTx}
}

var errInsideWriteTx = fmt.Errorf("reads are not supported inside a write transaction")

// =============================================================================
// TEMPLATE CATALOG
// =============================================================================

// Template is a stored evaluation template.
type Template struct {
	ID        string
	Name      string
	Status    string
	Version   int
	CreatedAt time.Time
}

// SaveTemplate inserts or updates a template.
func (s *Store) SaveTemplate(ctx context.Context, tpl Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, status, version, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			version = excluded.version
	`, tpl.ID, tpl.Name, tpl.Status, tpl.Version, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return wrapWriteError("save template", err)
	}
	return nil
}

// GetTemplate returns a template by id, or nil if missing.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		tpl       Template
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, version, created_at FROM templates WHERE id = ?
	`, id).Scan(&tpl.ID, &tpl.Name, &tpl.Status, &tpl.Version, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &record.StorageError{Op: "get template", Err: err}
	}
	tpl.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &tpl, nil
}

// ListTemplates returns all templates, newest first.
func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, version, created_at
		FROM templates
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, &record.StorageError{Op: "list templates", Err: err}
	}
	defer rows.Close()

	templates := make([]Template, 0)
	for rows.Next() {
		var (
			tpl       Template
			createdAt string
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Status, &tpl.Version, &createdAt); err != nil {
			return nil, &record.StorageError{Op: "scan template", Err: err}
		}
		tpl.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// SaveItem inserts or updates a template item.
func (s *Store) SaveItem(ctx context.Context, item record.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO template_items (id, template_id, key, label, kind, unit, required, weight, item_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			key = excluded.key,
			label = excluded.label,
			kind = excluded.kind,
			unit = excluded.unit,
			required = excluded.required,
			weight = excluded.weight,
			item_order = excluded.item_order
	`, item.ID, item.TemplateID, item.Key, item.Label, string(item.Kind),
		nullString(item.Unit), item.Required, item.Weight.String(), item.Order,
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return wrapWriteError("save item", err)
	}
	return nil
}

// GetItem returns an item by id, or nil if missing.
func (s *Store) GetItem(ctx context.Context, id string) (*record.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, key, label, kind, unit, required, weight, item_order
		FROM template_items
		WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &record.StorageError{Op: "get item", Err: err}
	}
	return &item, nil
}

// DeleteItem removes an item from its template.
// Returns sql.ErrNoRows if the item doesn't exist.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM template_items WHERE id = ?`, id)
	if err != nil {
		return wrapWriteError("delete item", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListItems returns a template's items ordered by display order ascending.
// Implements record.CatalogStore.
func (s *Store) ListItems(ctx context.Context, templateID string) ([]record.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, key, label, kind, unit, required, weight, item_order
		FROM template_items
		WHERE template_id = ?
		ORDER BY item_order ASC
	`, templateID)
	if err != nil {
		return nil, &record.StorageError{Op: "list items", Err: err}
	}
	defer rows.Close()

	items := make([]record.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, &record.StorageError{Op: "scan item", Err: err}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextItemOrder returns the display order for a newly added item.
func (s *Store) NextItemOrder(ctx context.Context, templateID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(item_order), 0) + 1 FROM template_items WHERE template_id = ?
	`, templateID).Scan(&next)
	if err != nil {
		return 0, &record.StorageError{Op: "next item order", Err: err}
	}
	return next, nil
}

// ReorderItems assigns display order 1..N following the given id sequence,
// atomically: either every item moves or none do.
func (s *Store) ReorderItems(ctx context.Context, templateID string, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &record.StorageError{Op: "begin reorder", Err: err}
	}
	defer sqlTx.Rollback()

	for i, itemID := range itemIDs {
		result, err := sqlTx.ExecContext(ctx, `
			UPDATE template_items SET item_order = ? WHERE id = ? AND template_id = ?
		`, i+1, itemID, templateID)
		if err != nil {
			return wrapWriteError("reorder item", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("reorder item %s: %w", itemID, sql.ErrNoRows)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &record.StorageError{Op: "commit reorder", Err: err}
	}
	return nil
}

// =============================================================================
// PRODUCTS & SESSIONS
// =============================================================================

// Product is an evaluation subject referenced by sessions.
type Product struct {
	ID        string
	Code      string
	Name      string
	Model     string
	CreatedAt time.Time
}

// SaveProduct inserts or updates a product.
func (s *Store) SaveProduct(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			model = excluded.model
	`, p.ID, p.Code, p.Name, nullString(p.Model), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return wrapWriteError("save product", err)
	}
	return nil
}

// ListProducts returns all products, newest first.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, model, created_at FROM products ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, &record.StorageError{Op: "list products", Err: err}
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var (
			p         Product
			model     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &model, &createdAt); err != nil {
			return nil, &record.StorageError{Op: "scan product", Err: err}
		}
		p.Model = model.String
		p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// Session is one recording session against one template.
type Session struct {
	ID         string
	Name       string
	TemplateID string
	ProductID  string
	CreatedAt  time.Time
}

// SaveSession inserts or updates a session.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, template_id, product_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
	`, sess.ID, sess.Name, sess.TemplateID, nullString(sess.ProductID),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return wrapWriteError("save session", err)
	}
	return nil
}

// GetSession returns a session by id, or nil if missing.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sess      Session
		productID sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, template_id, product_id, created_at FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Name, &sess.TemplateID, &productID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &record.StorageError{Op: "get session", Err: err}
	}
	sess.ProductID = productID.String
	sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, template_id, product_id, created_at
		FROM sessions
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, &record.StorageError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var (
			sess      Session
			productID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.TemplateID, &productID, &createdAt); err != nil {
			return nil, &record.StorageError{Op: "scan session", Err: err}
		}
		sess.ProductID = productID.String
		sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Reset wipes all data. Used by the demo scenario loader; dev only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Dependency order: history first, catalog last.
	for _, table := range []string{
		"response_samples", "responses", "sessions", "products", "template_items", "templates",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrapWriteError("reset "+table, err)
		}
	}
	return nil
}

// =============================================================================
// SCAN & ERROR HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (record.Snapshot, error) {
	var (
		snap      record.Snapshot
		value     string
		remark    sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&snap.SessionID, &snap.ItemID, &value, &remark, &createdAt, &updatedAt)
	if err != nil {
		return snap, err
	}
	snap.Value = []byte(value)
	snap.Remark = remark.String
	snap.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	snap.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return snap, nil
}

func scanItem(row rowScanner) (record.Item, error) {
	var (
		item   record.Item
		kind   string
		unit   sql.NullString
		weight string
	)
	err := row.Scan(&item.ID, &item.TemplateID, &item.Key, &item.Label, &kind,
		&unit, &item.Required, &weight, &item.Order)
	if err != nil {
		return item, err
	}
	item.Kind = record.ItemKind(kind)
	item.Unit = unit.String
	item.Weight, _ = decimal.NewFromString(weight)
	return item, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// wrapWriteError classifies a write failure: constraint violations become
// conflicts carrying the driver's diagnostic, anything else is a generic
// storage error.
func wrapWriteError(op string, err error) error {
	if isConstraintError(err) {
		return &record.ConflictError{Constraint: constraintDetail(err), Err: err}
	}
	return &record.StorageError{Op: op, Err: err}
}

func isConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// constraintDetail extracts the violated constraint from the driver message,
// e.g. "UNIQUE constraint failed: responses.session_id, responses.item_id"
// yields "responses.session_id, responses.item_id".
func constraintDetail(err error) string {
	msg := err.Error()
	if _, after, found := strings.Cut(msg, "constraint failed: "); found {
		return after
	}
	return msg
}
