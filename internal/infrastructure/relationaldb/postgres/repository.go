// Package postgres provides a PostgreSQL implementation of the RelationalDB
// interface on top of gorm.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB using PostgreSQL.
type Repository struct {
	db   *gorm.DB
	inTx bool
}

var _ ports.RelationalDB = (*Repository)(nil)

// NewRepository connects to the database named by cfg.DSN.
func NewRepository(cfg config.PostgresConfig) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := NewPostgres(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres database")
	}
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an existing gorm connection.
func NewRepositoryFromDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.inTx {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithinTx runs fn inside a gorm transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.RelationalDB) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, inTx: true})
	})
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := Migrate(r.conn(ctx)); err != nil {
		return errors.Wrap(err, "migrating schema")
	}
	return nil
}

// page applies limit and offset; a non-positive limit means no limit.
func page(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// SavePivot saves or updates a pivot definition.
func (r *Repository) SavePivot(ctx context.Context, pivot *entities.Pivot) error {
	m := Pivot{
		Name:            pivot.Name,
		LeftCollection:  pivot.LeftCollection,
		RightCollection: pivot.RightCollection,
		OnDelete:        string(pivot.OnDelete),
		OnDuplicate:     string(pivot.OnDuplicate),
		Description:     pivot.Description,
		CreatedAt:       pivot.CreatedAt,
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"on_delete", "on_duplicate", "description"}),
	}).Create(&m).Error
	if err != nil {
		return errors.Wrap(err, "saving pivot")
	}
	return nil
}

// FindPivot finds a pivot by name.
func (r *Repository) FindPivot(ctx context.Context, name string) (*entities.Pivot, error) {
	var m Pivot
	err := r.conn(ctx).Where("name = ?", name).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding pivot")
	}
	p := toPivot(m)
	return &p, nil
}

// ListPivots lists all pivots ordered by name.
func (r *Repository) ListPivots(ctx context.Context) ([]entities.Pivot, error) {
	var ms []Pivot
	if err := r.conn(ctx).Order("name ASC").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying pivots")
	}
	pivots := make([]entities.Pivot, 0, len(ms))
	for _, m := range ms {
		pivots = append(pivots, toPivot(m))
	}
	return pivots, nil
}

// DeletePivot deletes a pivot. Its associations go with it (ON DELETE CASCADE).
func (r *Repository) DeletePivot(ctx context.Context, name string) error {
	res := r.conn(ctx).Where("name = ?", name).Delete(&Pivot{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting pivot")
	}
	if res.RowsAffected == 0 {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{name}}
	}
	return nil
}

func toPivot(m Pivot) entities.Pivot {
	return entities.Pivot{
		Name:            m.Name,
		LeftCollection:  m.LeftCollection,
		RightCollection: m.RightCollection,
		OnDelete:        entities.DeletePolicy(m.OnDelete),
		OnDuplicate:     entities.DuplicatePolicy(m.OnDuplicate),
		Description:     m.Description,
		CreatedAt:       m.CreatedAt,
	}
}

// SaveEntity saves or updates an entity.
func (r *Repository) SaveEntity(ctx context.Context, entity *entities.Entity) error {
	m := Entity{
		Collection:     entity.Collection,
		ID:             entity.ID,
		Name:           entity.Name,
		NormalizedName: entity.NormalizedName,
		CreatedAt:      entity.CreatedAt,
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "normalized_name"}),
	}).Create(&m).Error
	if err != nil {
		return errors.Wrap(err, "saving entity")
	}
	return nil
}

// FindEntity finds an entity by collection and ID.
func (r *Repository) FindEntity(ctx context.Context, collection, id string) (*entities.Entity, error) {
	return r.findEntity(r.conn(ctx), collection, id)
}

// LockEntity finds an entity with SELECT ... FOR UPDATE.
func (r *Repository) LockEntity(ctx context.Context, collection, id string) (*entities.Entity, error) {
	return r.findEntity(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), collection, id)
}

func (r *Repository) findEntity(q *gorm.DB, collection, id string) (*entities.Entity, error) {
	var m Entity
	err := q.Where("collection = ? AND id = ?", collection, id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding entity")
	}
	return toEntity(m), nil
}

// FindEntitiesByIDs finds multiple entities of a collection in a single query.
func (r *Repository) FindEntitiesByIDs(ctx context.Context, collection string, ids []string) ([]*entities.Entity, error) {
	if len(ids) == 0 {
		return []*entities.Entity{}, nil
	}
	return r.findEntities(r.conn(ctx).
		Where("collection = ? AND id IN ?", collection, ids).
		Order("id ASC"))
}

// ListEntities lists entities of a collection with pagination.
func (r *Repository) ListEntities(ctx context.Context, collection string, limit, offset int) ([]*entities.Entity, error) {
	q := r.conn(ctx).Where("collection = ?", collection).Order("name ASC, id ASC")
	return r.findEntities(page(q, limit, offset))
}

// SearchEntities searches entities by name fragment.
func (r *Repository) SearchEntities(ctx context.Context, collection, query string, limit int) ([]*entities.Entity, error) {
	q := r.conn(ctx).
		Where("collection = ? AND normalized_name LIKE ?", collection, "%"+entities.NormalizeName(query)+"%").
		Order("name ASC, id ASC")
	return r.findEntities(page(q, limit, 0))
}

func (r *Repository) findEntities(q *gorm.DB) ([]*entities.Entity, error) {
	var ms []Entity
	if err := q.Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying entities")
	}
	result := make([]*entities.Entity, 0, len(ms))
	for _, m := range ms {
		result = append(result, toEntity(m))
	}
	return result, nil
}

func toEntity(m Entity) *entities.Entity {
	return &entities.Entity{
		Collection:     m.Collection,
		ID:             m.ID,
		Name:           m.Name,
		NormalizedName: m.NormalizedName,
		CreatedAt:      m.CreatedAt,
	}
}

// CountEntities returns the number of entities in a collection.
func (r *Repository) CountEntities(ctx context.Context, collection string) (int, error) {
	var count int64
	if err := r.conn(ctx).Model(&Entity{}).Where("collection = ?", collection).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting entities")
	}
	return int(count), nil
}

// DeleteEntity deletes an entity. Associations still referencing it make
// the foreign keys fail the statement.
func (r *Repository) DeleteEntity(ctx context.Context, collection, id string) error {
	res := r.conn(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&Entity{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting entity")
	}
	if res.RowsAffected == 0 {
		return entities.NotFoundError{Resource: collection, IDs: []string{id}}
	}
	return nil
}

// SaveAssociation inserts an association or updates the metadata of the
// existing pair. The collections are copied from the pivot so the foreign
// keys on entities apply.
func (r *Repository) SaveAssociation(ctx context.Context, assoc *entities.Association) error {
	pivot, err := r.FindPivot(ctx, assoc.Pivot)
	if err != nil {
		return err
	}
	if pivot == nil {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{assoc.Pivot}}
	}

	var metadata *string
	if len(assoc.Metadata) > 0 {
		data, err := json.Marshal(assoc.Metadata)
		if err != nil {
			return errors.Wrap(err, "marshaling metadata")
		}
		s := string(data)
		metadata = &s
	}

	m := Association{
		ID:              assoc.ID,
		PivotName:       assoc.Pivot,
		LeftCollection:  pivot.LeftCollection,
		LeftID:          assoc.LeftID,
		RightCollection: pivot.RightCollection,
		RightID:         assoc.RightID,
		Metadata:        metadata,
		CreatedAt:       assoc.CreatedAt,
		UpdatedAt:       assoc.UpdatedAt,
	}
	err = r.conn(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pivot"}, {Name: "left_id"}, {Name: "right_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"metadata", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return errors.Wrap(err, "saving association")
	}
	return nil
}

// FindAssociation finds the association for a pair.
func (r *Repository) FindAssociation(ctx context.Context, pivot, leftID, rightID string) (*entities.Association, error) {
	var m Association
	err := r.conn(ctx).
		Where("pivot = ? AND left_id = ? AND right_id = ?", pivot, leftID, rightID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding association")
	}
	assoc, err := toAssociation(m)
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// sideColumns returns the column matching an entity on side and the column
// of the opposite side.
func sideColumns(side entities.Side) (string, string) {
	if side == entities.SideRight {
		return "right_id", "left_id"
	}
	return "left_id", "right_id"
}

// FindAssociations lists the associations of an entity on one side of a pivot.
func (r *Repository) FindAssociations(ctx context.Context, pivot string, side entities.Side, entityID string) ([]entities.Association, error) {
	col, other := sideColumns(side)
	return r.findAssociations(r.conn(ctx).
		Where("pivot = ? AND "+col+" = ?", pivot, entityID).
		Order(other + " ASC"))
}

// ListAssociations lists all associations of a pivot with pagination.
func (r *Repository) ListAssociations(ctx context.Context, pivot string, limit, offset int) ([]entities.Association, error) {
	q := r.conn(ctx).Where("pivot = ?", pivot).Order("left_id ASC, right_id ASC")
	return r.findAssociations(page(q, limit, offset))
}

func (r *Repository) findAssociations(q *gorm.DB) ([]entities.Association, error) {
	var ms []Association
	if err := q.Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying associations")
	}
	assocs := make([]entities.Association, 0, len(ms))
	for _, m := range ms {
		assoc, err := toAssociation(m)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, assoc)
	}
	return assocs, nil
}

func toAssociation(m Association) (entities.Association, error) {
	assoc := entities.Association{
		ID:        m.ID,
		Pivot:     m.PivotName,
		LeftID:    m.LeftID,
		RightID:   m.RightID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Metadata != nil && *m.Metadata != "" {
		if err := json.Unmarshal([]byte(*m.Metadata), &assoc.Metadata); err != nil {
			return assoc, errors.Wrap(err, "unmarshaling metadata")
		}
	}
	return assoc, nil
}

// DeleteAssociation removes the association for a pair.
func (r *Repository) DeleteAssociation(ctx context.Context, pivot, leftID, rightID string) (bool, error) {
	res := r.conn(ctx).
		Where("pivot = ? AND left_id = ? AND right_id = ?", pivot, leftID, rightID).
		Delete(&Association{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "deleting association")
	}
	return res.RowsAffected > 0, nil
}

// DeleteAssociationsByEntity removes all associations of an entity on one side of a pivot.
func (r *Repository) DeleteAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	col, _ := sideColumns(side)
	res := r.conn(ctx).Where("pivot = ? AND "+col+" = ?", pivot, entityID).Delete(&Association{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting associations by entity")
	}
	return int(res.RowsAffected), nil
}

// CountAssociations returns the number of associations in a pivot.
func (r *Repository) CountAssociations(ctx context.Context, pivot string) (int, error) {
	var count int64
	if err := r.conn(ctx).Model(&Association{}).Where("pivot = ?", pivot).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting associations")
	}
	return int(count), nil
}

// CountAssociationsByEntity returns the number of associations of an entity on one side of a pivot.
func (r *Repository) CountAssociationsByEntity(ctx context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	col, _ := sideColumns(side)
	var count int64
	err := r.conn(ctx).Model(&Association{}).
		Where("pivot = ? AND "+col+" = ?", pivot, entityID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting associations")
	}
	return int(count), nil
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, subject string, details map[string]any) error {
	m := AuditLog{Action: action, CreatedAt: timeNow().UTC()}
	if subject != "" {
		m.Subject = &subject
	}
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return errors.Wrap(err, "marshaling details")
		}
		s := string(data)
		m.Details = &s
	}
	if err := r.conn(ctx).Create(&m).Error; err != nil {
		return errors.Wrap(err, "logging action")
	}
	return nil
}

// FindAuditLog finds audit log entries for a subject.
func (r *Repository) FindAuditLog(ctx context.Context, subject string) ([]entities.AuditEntry, error) {
	return r.findAuditLog(r.conn(ctx).Where("subject = ?", subject).Order("created_at DESC, id DESC"))
}

// FindAuditLogByAction finds audit log entries by action type.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	q := r.conn(ctx).Where("action = ?", action).Order("created_at DESC, id DESC")
	return r.findAuditLog(page(q, limit, 0))
}

func (r *Repository) findAuditLog(q *gorm.DB) ([]entities.AuditEntry, error) {
	var ms []AuditLog
	if err := q.Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying audit log")
	}
	entries := make([]entities.AuditEntry, 0, len(ms))
	for _, m := range ms {
		entry := entities.AuditEntry{ID: m.ID, Action: m.Action, CreatedAt: m.CreatedAt}
		if m.Subject != nil {
			entry.Subject = *m.Subject
		}
		if m.Details != nil && *m.Details != "" {
			if err := json.Unmarshal([]byte(*m.Details), &entry.Details); err != nil {
				return nil, errors.Wrap(err, "unmarshaling details")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
