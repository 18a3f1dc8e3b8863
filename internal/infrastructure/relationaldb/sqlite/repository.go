// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	q    querier
	inTx bool
	path string
}

var _ ports.RelationalDB = (*Repository)(nil)

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection serializes writers, keeps the pragmas below in
	// effect for every statement and lets ":memory:" databases survive
	// across calls.
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		q:    db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.inTx {
		return nil
	}
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// WithinTx runs fn inside a transaction bound to a copy of the repository.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.RelationalDB) error) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Repository{db: r.db, q: tx, inTx: true, path: r.path}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Pivot definitions (junctions between two collections)
	CREATE TABLE IF NOT EXISTS pivots (
		name TEXT PRIMARY KEY,
		left_collection TEXT NOT NULL,
		right_collection TEXT NOT NULL,
		on_delete TEXT NOT NULL DEFAULT 'cascade',
		on_duplicate TEXT NOT NULL DEFAULT 'update',
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Entities (records on either side of a pivot)
	CREATE TABLE IF NOT EXISTS entities (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_normalized ON entities(collection, normalized_name);

	-- Associations (one row per linked pair)
	CREATE TABLE IF NOT EXISTS associations (
		id TEXT PRIMARY KEY,
		pivot TEXT NOT NULL REFERENCES pivots(name) ON DELETE CASCADE,
		left_collection TEXT NOT NULL,
		left_id TEXT NOT NULL,
		right_collection TEXT NOT NULL,
		right_id TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pivot, left_id, right_id),
		FOREIGN KEY (left_collection, left_id) REFERENCES entities(collection, id),
		FOREIGN KEY (right_collection, right_id) REFERENCES entities(collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_associations_left ON associations(pivot, left_id);
	CREATE INDEX IF NOT EXISTS idx_associations_right ON associations(pivot, right_id);
	CREATE INDEX IF NOT EXISTS idx_associations_left_entity ON associations(left_collection, left_id);
	CREATE INDEX IF NOT EXISTS idx_associations_right_entity ON associations(right_collection, right_id);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		subject TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`

	_, err := r.q.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SavePivot saves or updates a pivot definition.
// The collections of an existing pivot cannot change once associations use them.
func (r *Repository) SavePivot(ctx context.Context, pivot *entities.Pivot) error {
	query := `
		INSERT INTO pivots (name, left_collection, right_collection, on_delete, on_duplicate, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			on_delete = excluded.on_delete,
			on_duplicate = excluded.on_duplicate,
			description = excluded.description
	`
	_, err := r.q.ExecContext(ctx, query,
		pivot.Name,
		pivot.LeftCollection,
		pivot.RightCollection,
		string(pivot.OnDelete),
		string(pivot.OnDuplicate),
		pivot.Description,
		pivot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving pivot: %w", err)
	}
	return nil
}

// FindPivot finds a pivot by name.
func (r *Repository) FindPivot(ctx context.Context, name string) (*entities.Pivot, error) {
	query := `
		SELECT name, left_collection, right_collection, on_delete, on_duplicate, description, created_at
		FROM pivots
		WHERE name = ?
	`
	row := r.q.QueryRowContext(ctx, query, name)

	p, err := scanPivot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPivots lists all pivots ordered by name.
func (r *Repository) ListPivots(ctx context.Context) ([]entities.Pivot, error) {
	query := `
		SELECT name, left_collection, right_collection, on_delete, on_duplicate, description, created_at
		FROM pivots
		ORDER BY name ASC
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pivots: %w", err)
	}
	defer rows.Close()

	pivots := make([]entities.Pivot, 0, 8)
	for rows.Next() {
		p, err := scanPivot(rows)
		if err != nil {
			return nil, err
		}
		pivots = append(pivots, *p)
	}
	return pivots, rows.Err()
}

// DeletePivot deletes a pivot. Its associations go with it (ON DELETE CASCADE).
func (r *Repository) DeletePivot(ctx context.Context, name string) error {
	query := `DELETE FROM pivots WHERE name = ?`
	result, err := r.q.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("deleting pivot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{name}}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPivot(row rowScanner) (*entities.Pivot, error) {
	var p entities.Pivot
	var onDelete, onDuplicate string
	var description sql.NullString

	err := row.Scan(
		&p.Name,
		&p.LeftCollection,
		&p.RightCollection,
		&onDelete,
		&onDuplicate,
		&description,
		&p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pivot: %w", err)
	}

	p.OnDelete = entities.DeletePolicy(onDelete)
	p.OnDuplicate = entities.DuplicatePolicy(onDuplicate)
	p.Description = description.String
	return &p, nil
}

// SaveEntity saves or updates an entity.
func (r *Repository) SaveEntity(ctx context.Context, entity *entities.Entity) error {
	query := `
		INSERT INTO entities (collection, id, name, normalized_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			name = excluded.name,
			normalized_name = excluded.normalized_name
	`
	_, err := r.q.ExecContext(ctx, query,
		entity.Collection,
		entity.ID,
		entity.Name,
		entity.NormalizedName,
		entity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}
	return nil
}

// FindEntity finds an entity by collection and ID.
func (r *Repository) FindEntity(ctx context.Context, collection, id string) (*entities.Entity, error) {
	query := `
		SELECT collection, id, name, normalized_name, created_at
		FROM entities
		WHERE collection = ? AND id = ?
	`
	row := r.q.QueryRowContext(ctx, query, collection, id)

	var entity entities.Entity
	err := row.Scan(
		&entity.Collection,
		&entity.ID,
		&entity.Name,
		&entity.NormalizedName,
		&entity.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return &entity, nil
}

// LockEntity finds an entity. SQLite already serializes writers on the
// repository's single connection, so no row lock is taken.
func (r *Repository) LockEntity(ctx context.Context, collection, id string) (*entities.Entity, error) {
	return r.FindEntity(ctx, collection, id)
}

// FindEntitiesByIDs finds multiple entities of a collection in a single query.
func (r *Repository) FindEntitiesByIDs(ctx context.Context, collection string, ids []string) ([]*entities.Entity, error) {
	if len(ids) == 0 {
		return []*entities.Entity{}, nil
	}

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT collection, id, name, normalized_name, created_at
		FROM entities
		WHERE collection = ? AND id IN (%s)
		ORDER BY id ASC
	`, strings.Join(placeholders, ","))

	return r.queryEntities(ctx, len(ids), query, args...)
}

// ListEntities lists entities of a collection with pagination.
func (r *Repository) ListEntities(ctx context.Context, collection string, limit, offset int) ([]*entities.Entity, error) {
	query := `
		SELECT collection, id, name, normalized_name, created_at
		FROM entities
		WHERE collection = ?
		ORDER BY name ASC, id ASC
		LIMIT ? OFFSET ?
	`
	return r.queryEntities(ctx, limit, query, collection, sqlLimit(limit), offset)
}

// SearchEntities searches entities by name fragment.
func (r *Repository) SearchEntities(ctx context.Context, collection, query string, limit int) ([]*entities.Entity, error) {
	normalizedQuery := "%" + entities.NormalizeName(query) + "%"
	sqlQuery := `
		SELECT collection, id, name, normalized_name, created_at
		FROM entities
		WHERE collection = ? AND normalized_name LIKE ?
		ORDER BY name ASC, id ASC
		LIMIT ?
	`
	return r.queryEntities(ctx, limit, sqlQuery, collection, normalizedQuery, sqlLimit(limit))
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// queryEntities is a helper to execute entity queries.
func (r *Repository) queryEntities(ctx context.Context, capacity int, query string, args ...any) ([]*entities.Entity, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	if capacity < 0 {
		capacity = 0
	}
	result := make([]*entities.Entity, 0, capacity)
	for rows.Next() {
		var entity entities.Entity
		if err := rows.Scan(
			&entity.Collection,
			&entity.ID,
			&entity.Name,
			&entity.NormalizedName,
			&entity.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, &entity)
	}
	return result, rows.Err()
}

// CountEntities returns the number of entities in a collection.
func (r *Repository) CountEntities(ctx context.Context, collection string) (int, error) {
	query := `SELECT COUNT(*) FROM entities WHERE collection = ?`
	var count int
	err := r.q.QueryRowContext(ctx, query, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// DeleteEntity deletes an entity. Associations still referencing it make
// the foreign keys fail the statement.
func (r *Repository) DeleteEntity(ctx context.Context, collection, id string) error {
	query := `DELETE FROM entities WHERE collection = ? AND id = ?`
	result, err := r.q.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return entities.NotFoundError{Resource: collection, IDs: []string{id}}
	}
	return nil
}

// SaveAssociation inserts an association or updates the metadata of the
// existing pair. The collections are copied from the pivot so the foreign
// keys on entities apply.
func (r *Repository) SaveAssociation(ctx context.Context, assoc *entities.Association) error {
	var metadata sql.NullString
	if len(assoc.Metadata) > 0 {
		data, err := json.Marshal(assoc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO associations (id, pivot, left_collection, left_id, right_collection, right_id, metadata, created_at, updated_at)
		SELECT ?, name, left_collection, ?, right_collection, ?, ?, ?, ?
		FROM pivots
		WHERE name = ?
		ON CONFLICT(pivot, left_id, right_id) DO UPDATE SET
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	result, err := r.q.ExecContext(ctx, query,
		assoc.ID,
		assoc.LeftID,
		assoc.RightID,
		metadata,
		assoc.CreatedAt,
		assoc.UpdatedAt,
		assoc.Pivot,
	)
	if err != nil {
		return fmt.Errorf("saving association: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{assoc.Pivot}}
	}
	return nil
}

const associationColumns = `id, pivot, left_id, right_id, metadata, created_at, updated_at`

// FindAssociation finds the association for a pair.
func (r *Repository) FindAssociation(ctx context.Context, pivot, leftID, rightID string) (*entities.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM associations
		WHERE pivot = ? AND left_id = ? AND right_id = ?
	`
	row := r.q.QueryRowContext(ctx, query, pivot, leftID, rightID)

	assoc, err := scanAssociation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return assoc, nil
}

// FindAssociations lists the associations of an entity on one side of a pivot.
func (r *Repository) FindAssociations(ctx context.Context, pivot string, side entities.Side, entityID string) ([]entities.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM associations
		WHERE pivot = ? AND left_id = ?
		ORDER BY right_id ASC
	`
	if side == entities.SideRight {
		query = `
		SELECT ` + associationColumns + `
		FROM associations
		WHERE pivot = ? AND right_id = ?
		ORDER BY left_id ASC
	`
	}
	return r.queryAssociations(ctx, query, pivot, entityID)
}

// ListAssociations lists all associations of a pivot with pagination.
func (r *Repository) ListAssociations(ctx context.Context, pivot string, limit, offset int) ([]entities.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM associations
		WHERE pivot = ?
		ORDER BY left_id ASC, right_id ASC
		LIMIT ? OFFSET ?
	`
	return r.queryAssociations(ctx, query, pivot, sqlLimit(limit), offset)
}

// DeleteAssociation removes the association for a pair.
func (r *Repository) DeleteAssociation(ctx context.Context, pivot, leftID, rightID string) (bool, error) {
	query := `DELETE FROM associations WHERE pivot = ? AND left_id = ? AND right_id = ?`
	result, err := r.q.ExecContext(ctx, query, pivot, leftID, rightID)
	if err != nil {
		return false, fmt.Errorf("deleting association: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeleteAssociationsByEntity removes all associations of an entity on one side of a pivot.
func (r *Repository) DeleteAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	query := `DELETE FROM associations WHERE pivot = ? AND left_id = ?`
	if side == entities.SideRight {
		query = `DELETE FROM associations WHERE pivot = ? AND right_id = ?`
	}
	result, err := r.q.ExecContext(ctx, query, pivot, entityID)
	if err != nil {
		return 0, fmt.Errorf("deleting associations by entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// CountAssociations returns the number of associations in a pivot.
func (r *Repository) CountAssociations(ctx context.Context, pivot string) (int, error) {
	query := `SELECT COUNT(*) FROM associations WHERE pivot = ?`
	var count int
	err := r.q.QueryRowContext(ctx, query, pivot).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting associations: %w", err)
	}
	return count, nil
}

// CountAssociationsByEntity returns the number of associations of an entity on one side of a pivot.
func (r *Repository) CountAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	query := `SELECT COUNT(*) FROM associations WHERE pivot = ? AND left_id = ?`
	if side == entities.SideRight {
		query = `SELECT COUNT(*) FROM associations WHERE pivot = ? AND right_id = ?`
	}
	var count int
	err := r.q.QueryRowContext(ctx, query, pivot, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting associations: %w", err)
	}
	return count, nil
}

// queryAssociations is a helper to execute association queries.
func (r *Repository) queryAssociations(ctx context.Context, query string, args ...any) ([]entities.Association, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying associations: %w", err)
	}
	defer rows.Close()

	assocs := make([]entities.Association, 0, 16)
	for rows.Next() {
		assoc, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, *assoc)
	}
	return assocs, rows.Err()
}

func scanAssociation(row rowScanner) (*entities.Association, error) {
	var assoc entities.Association
	var metadata sql.NullString

	err := row.Scan(
		&assoc.ID,
		&assoc.Pivot,
		&assoc.LeftID,
		&assoc.RightID,
		&metadata,
		&assoc.CreatedAt,
		&assoc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning association: %w", err)
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &assoc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &assoc, nil
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, subject string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var subjectPtr sql.NullString
	if subject != "" {
		subjectPtr = sql.NullString{String: subject, Valid: true}
	}

	query := `INSERT INTO audit_log (action, subject, details, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query, action, subjectPtr, detailsJSON, timeNow().UTC())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a subject.
func (r *Repository) FindAuditLog(ctx context.Context, subject string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, subject, details, created_at
		FROM audit_log
		WHERE subject = ?
		ORDER BY created_at DESC, id DESC
	`
	return r.queryAuditLog(ctx, query, subject)
}

// FindAuditLogByAction finds audit log entries by action type.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, subject, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return r.queryAuditLog(ctx, query, action, sqlLimit(limit))
}

// queryAuditLog is a helper to execute audit log queries.
func (r *Repository) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	// Use limit parameter as capacity hint if available
	var entries []entities.AuditEntry
	if len(args) > 0 {
		if limit, ok := args[len(args)-1].(int); ok && limit > 0 {
			entries = make([]entities.AuditEntry, 0, limit)
		}
	}

	for rows.Next() {
		var entry entities.AuditEntry
		var subject, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&subject,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.Subject = subject.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
