// Package ports defines interfaces for storage and delivery adapters.
package ports

import (
	"context"

	"github.com/ersonp/pivot/internal/domain/entities"
)

// RelationalDB defines the interface for relational database operations.
// Lookups that find nothing return a nil record and a nil error.
type RelationalDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// WithinTx runs fn inside one transaction. The RelationalDB passed to fn
	// is bound to that transaction; the transaction commits when fn returns
	// nil and rolls back on error or panic. Calling WithinTx on a
	// transaction-bound RelationalDB joins the outer transaction.
	WithinTx(ctx context.Context, fn func(tx RelationalDB) error) error

	// Pivot operations

	// SavePivot saves or updates a pivot definition.
	SavePivot(ctx context.Context, pivot *entities.Pivot) error

	// FindPivot finds a pivot by name.
	FindPivot(ctx context.Context, name string) (*entities.Pivot, error)

	// ListPivots lists all pivots ordered by name.
	ListPivots(ctx context.Context) ([]entities.Pivot, error)

	// DeletePivot deletes a pivot and all of its associations.
	DeletePivot(ctx context.Context, name string) error

	// Entity operations

	// SaveEntity saves or updates an entity.
	SaveEntity(ctx context.Context, entity *entities.Entity) error

	// FindEntity finds an entity by collection and ID.
	FindEntity(ctx context.Context, collection, id string) (*entities.Entity, error)

	// LockEntity finds an entity and holds a write lock on it until the
	// surrounding transaction ends. Stores that serialize writers may treat
	// it as FindEntity.
	LockEntity(ctx context.Context, collection, id string) (*entities.Entity, error)

	// FindEntitiesByIDs finds the entities of a collection with the given IDs.
	// Missing IDs are simply absent from the result.
	FindEntitiesByIDs(ctx context.Context, collection string, ids []string) ([]*entities.Entity, error)

	// ListEntities lists entities of a collection with pagination.
	ListEntities(ctx context.Context, collection string, limit, offset int) ([]*entities.Entity, error)

	// SearchEntities searches entities by name fragment.
	SearchEntities(ctx context.Context, collection, query string, limit int) ([]*entities.Entity, error)

	// CountEntities returns the number of entities in a collection.
	CountEntities(ctx context.Context, collection string) (int, error)

	// DeleteEntity deletes an entity. It does not touch associations.
	DeleteEntity(ctx context.Context, collection, id string) error

	// Association operations

	// SaveAssociation inserts an association or updates the metadata of the
	// existing record for the same (pivot, left, right) pair.
	SaveAssociation(ctx context.Context, assoc *entities.Association) error

	// FindAssociation finds the association for a pair.
	FindAssociation(ctx context.Context, pivot, leftID, rightID string) (*entities.Association, error)

	// FindAssociations lists the associations of an entity on one side of a
	// pivot, ordered by the opposite side's ID.
	FindAssociations(ctx context.Context, pivot string, side entities.Side, entityID string) ([]entities.Association, error)

	// ListAssociations lists all associations of a pivot with pagination.
	ListAssociations(ctx context.Context, pivot string, limit, offset int) ([]entities.Association, error)

	// DeleteAssociation removes the association for a pair and reports
	// whether a record was removed.
	DeleteAssociation(ctx context.Context, pivot, leftID, rightID string) (bool, error)

	// DeleteAssociationsByEntity removes all associations of an entity on one
	// side of a pivot and returns how many were removed.
	DeleteAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error)

	// CountAssociations returns the number of associations in a pivot.
	CountAssociations(ctx context.Context, pivot string) (int, error)

	// CountAssociationsByEntity returns the number of associations of an
	// entity on one side of a pivot.
	CountAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error)

	// Audit operations

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, subject string, details map[string]any) error

	// FindAuditLog finds audit log entries for a subject, newest first.
	FindAuditLog(ctx context.Context, subject string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type, newest first.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}
