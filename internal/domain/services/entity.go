package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// DeleteResult reports the associations removed with an entity, per pivot.
type DeleteResult struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Cascaded   map[string]int `json:"cascaded,omitempty"`
}

// EntityService manages entity operations.
type EntityService struct {
	relationalDB ports.RelationalDB
	notifier
}

// NewEntityService creates a new EntityService.
func NewEntityService(relationalDB ports.RelationalDB, opts ...Option) *EntityService {
	return &EntityService{
		relationalDB: relationalDB,
		notifier:     newNotifier("entities", opts),
	}
}

// Save creates or renames an entity. An empty id is replaced by a new UUID.
func (s *EntityService) Save(ctx context.Context, collection, id, name string) (*entities.Entity, error) {
	collection = strings.ToLower(strings.TrimSpace(collection))
	if !validNameRegex.MatchString(collection) {
		return nil, entities.ValidationError{Reason: fmt.Sprintf("collection %q must be lowercase alphanumeric with underscores, starting with a letter", collection)}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.New().String()
	}
	if strings.Contains(id, "/") {
		return nil, entities.ValidationError{Reason: "entity id must not contain '/'"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}

	e := &entities.Entity{
		Collection:     collection,
		ID:             id,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		CreatedAt:      time.Now(),
	}
	if err := s.relationalDB.SaveEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("saving entity: %w", err)
	}

	// Existing entities keep their original CreatedAt.
	saved, err := s.relationalDB.FindEntity(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("reloading entity: %w", err)
	}
	if saved != nil {
		e = saved
	}
	return e, nil
}

// Find returns an entity by collection and ID.
func (s *EntityService) Find(ctx context.Context, collection, id string) (*entities.Entity, error) {
	e, err := s.relationalDB.FindEntity(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	if e == nil {
		return nil, entities.NotFoundError{Resource: collection, IDs: []string{id}}
	}
	return e, nil
}

// List returns the entities of a collection with pagination.
func (s *EntityService) List(ctx context.Context, collection string, limit, offset int) ([]*entities.Entity, error) {
	return s.relationalDB.ListEntities(ctx, collection, limit, offset)
}

// Search searches entities by name fragment.
func (s *EntityService) Search(ctx context.Context, collection, query string, limit int) ([]*entities.Entity, error) {
	return s.relationalDB.SearchEntities(ctx, collection, query, limit)
}

// Count returns the number of entities in a collection.
func (s *EntityService) Count(ctx context.Context, collection string) (int, error) {
	return s.relationalDB.CountEntities(ctx, collection)
}

type cascadeStep struct {
	pivot string
	side  entities.Side
	// removed maps each left ID to the right IDs dropped from it.
	removed map[string][]string
}

// Delete removes an entity and applies each pivot's delete policy to its
// associations. A restrict pivot holding associations of the entity fails
// the whole delete with an IntegrityError.
func (s *EntityService) Delete(ctx context.Context, collection, id string) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "Entity.Service.Delete")
	defer span.End()

	result := &DeleteResult{Collection: collection, ID: id, Cascaded: map[string]int{}}
	var steps []cascadeStep
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		if err := requireEntity(ctx, tx, collection, id); err != nil {
			return err
		}
		pivots, err := tx.ListPivots(ctx)
		if err != nil {
			return fmt.Errorf("listing pivots: %w", err)
		}

		// Check every restrict pivot before removing anything.
		for i := range pivots {
			p := &pivots[i]
			for _, side := range p.Touches(collection) {
				assocs, err := tx.FindAssociations(ctx, p.Name, side, id)
				if err != nil {
					return fmt.Errorf("finding associations in %s: %w", p.Name, err)
				}
				if len(assocs) == 0 {
					continue
				}
				if p.OnDelete == entities.DeleteRestrict {
					return entities.IntegrityError{Reason: fmt.Sprintf(
						"%s %s has %d association(s) in restrict pivot %s", collection, id, len(assocs), p.Name)}
				}
				step := cascadeStep{pivot: p.Name, side: side, removed: map[string][]string{}}
				for j := range assocs {
					step.removed[assocs[j].LeftID] = append(step.removed[assocs[j].LeftID], assocs[j].RightID)
				}
				steps = append(steps, step)
			}
		}

		for _, step := range steps {
			n, err := tx.DeleteAssociationsByEntity(ctx, step.pivot, step.side, id)
			if err != nil {
				return fmt.Errorf("cascading into %s: %w", step.pivot, err)
			}
			result.Cascaded[step.pivot] += n
		}

		if err := tx.DeleteEntity(ctx, collection, id); err != nil {
			return fmt.Errorf("deleting entity: %w", err)
		}
		return tx.LogAction(ctx, entities.ActionDeleteEntity, collection+"/"+id, map[string]any{
			"cascaded": result.Cascaded,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var keys []string
	for _, step := range steps {
		for leftID := range step.removed {
			keys = append(keys, CacheKey(step.pivot, leftID))
		}
	}
	s.invalidate(ctx, keys...)
	now := time.Now()
	for _, step := range steps {
		s.publishRemovals(ctx, step.pivot, step.removed, now)
	}
	s.publish(ctx, entities.ChangeEvent{
		Type:       entities.ChangeEntityDeleted,
		Collection: collection,
		EntityID:   id,
		At:         now,
	})
	s.logger.Debug("entity deleted", "collection", collection, "id", id, "cascaded", result.Cascaded)
	return result, nil
}
