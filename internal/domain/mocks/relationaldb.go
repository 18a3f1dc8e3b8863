// Package mocks provides in-memory implementations of the domain ports for tests.
package mocks

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// memState is the data held by a RelationalDB. Transactions work on a deep
// copy and swap it in on commit.
type memState struct {
	pivots       map[string]entities.Pivot
	entities     map[string]entities.Entity
	associations map[string]entities.Association
	audit        []entities.AuditEntry
	nextAuditID  int64
}

func newMemState() *memState {
	return &memState{
		pivots:       make(map[string]entities.Pivot),
		entities:     make(map[string]entities.Entity),
		associations: make(map[string]entities.Association),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		pivots:       maps.Clone(s.pivots),
		entities:     maps.Clone(s.entities),
		associations: make(map[string]entities.Association, len(s.associations)),
		audit:        append([]entities.AuditEntry(nil), s.audit...),
		nextAuditID:  s.nextAuditID,
	}
	for k, a := range s.associations {
		a.Metadata = maps.Clone(a.Metadata)
		c.associations[k] = a
	}
	return c
}

func entityKey(collection, id string) string {
	return collection + "\x00" + id
}

func assocKey(pivot, left, right string) string {
	return pivot + "\x00" + left + "\x00" + right
}

// RelationalDB is an in-memory implementation of ports.RelationalDB with
// snapshot transactions.
type RelationalDB struct {
	// Err, when set, is returned by every operation.
	Err error
	// Fail, when set, is consulted before every write with the operation
	// name; a non-nil result aborts that operation.
	Fail func(op string) error

	txMu  *sync.Mutex
	mu    *sync.Mutex
	state *memState
	inTx  bool

	// Commits and Rollbacks count finished top-level transactions.
	Commits   int
	Rollbacks int
}

var _ ports.RelationalDB = (*RelationalDB)(nil)

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		txMu:  &sync.Mutex{},
		mu:    &sync.Mutex{},
		state: newMemState(),
	}
}

func (m *RelationalDB) check(op string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

// WithinTx runs fn against a copy of the state and keeps it only on success.
func (m *RelationalDB) WithinTx(_ context.Context, fn func(tx ports.RelationalDB) error) (err error) {
	if m.Err != nil {
		return m.Err
	}
	if m.inTx {
		return fn(m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	tx := &RelationalDB{
		Fail:  m.Fail,
		txMu:  &sync.Mutex{},
		mu:    &sync.Mutex{},
		state: snapshot,
		inTx:  true,
	}

	committed := false
	defer func() {
		if !committed {
			m.Rollbacks++
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = snapshot
	m.mu.Unlock()
	committed = true
	m.Commits++
	return nil
}

// Pivot methods.

// SavePivot saves or updates a pivot definition.
func (m *RelationalDB) SavePivot(_ context.Context, pivot *entities.Pivot) error {
	if err := m.check("SavePivot"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.state.pivots[pivot.Name]; ok {
		existing.OnDelete = pivot.OnDelete
		existing.OnDuplicate = pivot.OnDuplicate
		existing.Description = pivot.Description
		m.state.pivots[pivot.Name] = existing
		return nil
	}
	m.state.pivots[pivot.Name] = *pivot
	return nil
}

// FindPivot finds a pivot by name.
func (m *RelationalDB) FindPivot(_ context.Context, name string) (*entities.Pivot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.pivots[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPivots lists all pivots ordered by name.
func (m *RelationalDB) ListPivots(_ context.Context) ([]entities.Pivot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]entities.Pivot, 0, len(m.state.pivots))
	for _, p := range m.state.pivots {
		result = append(result, p)
	}
	// Sort by name for deterministic test results
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DeletePivot deletes a pivot and its associations.
func (m *RelationalDB) DeletePivot(_ context.Context, name string) error {
	if err := m.check("DeletePivot"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.pivots[name]; !ok {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{name}}
	}
	delete(m.state.pivots, name)
	for k, a := range m.state.associations {
		if a.Pivot == name {
			delete(m.state.associations, k)
		}
	}
	return nil
}

// Entity methods.

// SaveEntity saves or updates an entity.
func (m *RelationalDB) SaveEntity(_ context.Context, entity *entities.Entity) error {
	if err := m.check("SaveEntity"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entityKey(entity.Collection, entity.ID)
	if existing, ok := m.state.entities[key]; ok {
		existing.Name = entity.Name
		existing.NormalizedName = entity.NormalizedName
		m.state.entities[key] = existing
		return nil
	}
	m.state.entities[key] = *entity
	return nil
}

// FindEntity finds an entity by collection and ID.
func (m *RelationalDB) FindEntity(_ context.Context, collection, id string) (*entities.Entity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.entities[entityKey(collection, id)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// LockEntity finds an entity; transactions are already serialized.
func (m *RelationalDB) LockEntity(ctx context.Context, collection, id string) (*entities.Entity, error) {
	return m.FindEntity(ctx, collection, id)
}

// FindEntitiesByIDs finds the entities of a collection with the given IDs.
func (m *RelationalDB) FindEntitiesByIDs(_ context.Context, collection string, ids []string) ([]*entities.Entity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*entities.Entity, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := m.state.entities[entityKey(collection, id)]; ok {
			result = append(result, &e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *RelationalDB) collectionEntities(collection, contains string) []*entities.Entity {
	result := make([]*entities.Entity, 0)
	for _, e := range m.state.entities {
		if e.Collection != collection {
			continue
		}
		if contains != "" && !strings.Contains(e.NormalizedName, contains) {
			continue
		}
		e := e
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ListEntities lists entities of a collection with pagination.
func (m *RelationalDB) ListEntities(_ context.Context, collection string, limit, offset int) ([]*entities.Entity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.collectionEntities(collection, ""), limit, offset), nil
}

// SearchEntities searches entities by name fragment.
func (m *RelationalDB) SearchEntities(_ context.Context, collection, query string, limit int) ([]*entities.Entity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.collectionEntities(collection, entities.NormalizeName(query)), limit, 0), nil
}

// CountEntities returns the number of entities in a collection.
func (m *RelationalDB) CountEntities(_ context.Context, collection string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collectionEntities(collection, "")), nil
}

// ErrForeignKey mirrors a foreign key failure of a real database.
var ErrForeignKey = errors.New("FOREIGN KEY constraint failed")

// DeleteEntity deletes an entity; referenced entities fail like a foreign key would.
func (m *RelationalDB) DeleteEntity(_ context.Context, collection, id string) error {
	if err := m.check("DeleteEntity"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entityKey(collection, id)
	if _, ok := m.state.entities[key]; !ok {
		return entities.NotFoundError{Resource: collection, IDs: []string{id}}
	}
	for _, a := range m.state.associations {
		p := m.state.pivots[a.Pivot]
		if (p.LeftCollection == collection && a.LeftID == id) || (p.RightCollection == collection && a.RightID == id) {
			return ErrForeignKey
		}
	}
	delete(m.state.entities, key)
	return nil
}

// Association methods.

// SaveAssociation inserts an association or updates the existing pair.
func (m *RelationalDB) SaveAssociation(_ context.Context, assoc *entities.Association) error {
	if err := m.check("SaveAssociation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.pivots[assoc.Pivot]
	if !ok {
		return entities.NotFoundError{Resource: "pivot", IDs: []string{assoc.Pivot}}
	}
	if _, ok := m.state.entities[entityKey(p.LeftCollection, assoc.LeftID)]; !ok {
		return ErrForeignKey
	}
	if _, ok := m.state.entities[entityKey(p.RightCollection, assoc.RightID)]; !ok {
		return ErrForeignKey
	}
	key := assocKey(assoc.Pivot, assoc.LeftID, assoc.RightID)
	if existing, ok := m.state.associations[key]; ok {
		existing.Metadata = maps.Clone(assoc.Metadata)
		existing.UpdatedAt = assoc.UpdatedAt
		m.state.associations[key] = existing
		return nil
	}
	stored := *assoc
	stored.Metadata = maps.Clone(assoc.Metadata)
	m.state.associations[key] = stored
	return nil
}

// FindAssociation finds the association for a pair.
func (m *RelationalDB) FindAssociation(_ context.Context, pivot, leftID, rightID string) (*entities.Association, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.associations[assocKey(pivot, leftID, rightID)]
	if !ok {
		return nil, nil
	}
	a.Metadata = maps.Clone(a.Metadata)
	return &a, nil
}

func (m *RelationalDB) matching(pivot string, side entities.Side, entityID string) []entities.Association {
	result := make([]entities.Association, 0)
	for _, a := range m.state.associations {
		if a.Pivot != pivot {
			continue
		}
		if entityID != "" {
			if side == entities.SideRight && a.RightID != entityID {
				continue
			}
			if side != entities.SideRight && a.LeftID != entityID {
				continue
			}
		}
		a.Metadata = maps.Clone(a.Metadata)
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LeftID != result[j].LeftID {
			return result[i].LeftID < result[j].LeftID
		}
		return result[i].RightID < result[j].RightID
	})
	return result
}

// FindAssociations lists the associations of an entity on one side of a pivot.
func (m *RelationalDB) FindAssociations(_ context.Context, pivot string, side entities.Side, entityID string) ([]entities.Association, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(pivot, side, entityID), nil
}

// ListAssociations lists all associations of a pivot with pagination.
func (m *RelationalDB) ListAssociations(_ context.Context, pivot string, limit, offset int) ([]entities.Association, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.matching(pivot, entities.SideLeft, ""), limit, offset), nil
}

// DeleteAssociation removes the association for a pair.
func (m *RelationalDB) DeleteAssociation(_ context.Context, pivot, leftID, rightID string) (bool, error) {
	if err := m.check("DeleteAssociation"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := assocKey(pivot, leftID, rightID)
	if _, ok := m.state.associations[key]; !ok {
		return false, nil
	}
	delete(m.state.associations, key)
	return true, nil
}

// DeleteAssociationsByEntity removes all associations of an entity on one side of a pivot.
func (m *RelationalDB) DeleteAssociationsByEntity(_ context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	if err := m.check("DeleteAssociationsByEntity"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.matching(pivot, side, entityID)
	for i := range matched {
		delete(m.state.associations, assocKey(pivot, matched[i].LeftID, matched[i].RightID))
	}
	return len(matched), nil
}

// CountAssociations returns the number of associations in a pivot.
func (m *RelationalDB) CountAssociations(_ context.Context, pivot string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(pivot, entities.SideLeft, "")), nil
}

// CountAssociationsByEntity returns the number of associations of an entity on one side of a pivot.
func (m *RelationalDB) CountAssociationsByEntity(_ context.Context, pivot string, side entities.Side, entityID string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(pivot, side, entityID)), nil
}

// Audit methods.

// LogAction logs an action to the audit log.
func (m *RelationalDB) LogAction(_ context.Context, action string, subject string, details map[string]any) error {
	if err := m.check("LogAction"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextAuditID++
	m.state.audit = append(m.state.audit, entities.AuditEntry{
		ID:        m.state.nextAuditID,
		Action:    action,
		Subject:   subject,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog finds audit log entries for a subject, newest first.
func (m *RelationalDB) FindAuditLog(_ context.Context, subject string) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for i := len(m.state.audit) - 1; i >= 0; i-- {
		if m.state.audit[i].Subject == subject {
			result = append(result, m.state.audit[i])
		}
	}
	return result, nil
}

// FindAuditLogByAction finds audit log entries by action type, newest first.
func (m *RelationalDB) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []entities.AuditEntry
	for i := len(m.state.audit) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		if m.state.audit[i].Action == action {
			result = append(result, m.state.audit[i])
		}
	}
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
