package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// LinkResult reports what a link call did.
type LinkResult struct {
	Association *entities.Association `json:"association"`
	Created     bool                  `json:"created"`
	Updated     bool                  `json:"updated"`
}

// SyncRequest describes a synchronize call.
type SyncRequest struct {
	Pivot    string
	LeftID   string
	RightIDs []string
	// Metadata is attached to newly created associations only.
	Metadata map[string]any
	// IfMatch, when set, must equal the fingerprint of the current set.
	IfMatch string
}

// AssociationService manages the associations of a pivot.
type AssociationService struct {
	relationalDB ports.RelationalDB
	notifier
	now func() time.Time
}

// NewAssociationService creates a new AssociationService.
func NewAssociationService(relationalDB ports.RelationalDB, opts ...Option) *AssociationService {
	return &AssociationService{
		relationalDB: relationalDB,
		notifier:     newNotifier("associations", opts),
		now:          time.Now,
	}
}

// Link creates the association between leftID and rightID, or applies the
// pivot's duplicate policy when the pair is already linked.
func (s *AssociationService) Link(
	ctx context.Context,
	pivot, leftID, rightID string,
	metadata map[string]any,
) (*LinkResult, error) {
	ctx, span := tracer.Start(ctx, "Association.Service.Link", trace.WithAttributes(
		attribute.String("pivot", pivot),
		attribute.String("left_id", leftID),
		attribute.String("right_id", rightID),
	))
	defer span.End()

	var result *LinkResult
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		p, err := requirePivot(ctx, tx, pivot)
		if err != nil {
			return err
		}
		if err := requireEntity(ctx, tx, p.LeftCollection, leftID); err != nil {
			return err
		}
		if err := requireEntity(ctx, tx, p.RightCollection, rightID); err != nil {
			return err
		}

		existing, err := tx.FindAssociation(ctx, pivot, leftID, rightID)
		if err != nil {
			return fmt.Errorf("finding association: %w", err)
		}
		if existing != nil {
			result, err = s.relinkExisting(ctx, tx, p, existing, metadata)
			return err
		}

		now := s.now()
		assoc := &entities.Association{
			ID:        uuid.New().String(),
			Pivot:     pivot,
			LeftID:    leftID,
			RightID:   rightID,
			Metadata:  entities.CloneMetadata(metadata),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.SaveAssociation(ctx, assoc); err != nil {
			return fmt.Errorf("saving association: %w", err)
		}
		if err := tx.LogAction(ctx, entities.ActionLink, entities.AssociationSubject(pivot, leftID), map[string]any{
			"right_id": rightID,
			"metadata": assoc.Metadata,
		}); err != nil {
			return fmt.Errorf("logging link: %w", err)
		}
		result = &LinkResult{Association: assoc, Created: true}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if result.Created || result.Updated {
		s.invalidate(ctx, CacheKey(pivot, leftID))
		s.publish(ctx, entities.ChangeEvent{
			Type:   entities.ChangeLinked,
			Pivot:  pivot,
			LeftID: leftID,
			Added:  []string{rightID},
			At:     s.now(),
		})
	}
	s.logger.Debug("link", "pivot", pivot, "left", leftID, "right", rightID, "created", result.Created, "updated", result.Updated)
	return result, nil
}

func (s *AssociationService) relinkExisting(
	ctx context.Context,
	tx ports.RelationalDB,
	p *entities.Pivot,
	existing *entities.Association,
	metadata map[string]any,
) (*LinkResult, error) {
	switch p.OnDuplicate {
	case entities.DuplicateReject:
		return nil, entities.ConflictError{
			Reason: fmt.Sprintf("%s already links %s to %s", p.Name, existing.LeftID, existing.RightID),
		}
	case entities.DuplicateIgnore:
		return &LinkResult{Association: existing}, nil
	}

	if !existing.MergeMetadata(metadata) {
		return &LinkResult{Association: existing}, nil
	}
	existing.UpdatedAt = s.now()
	if err := tx.SaveAssociation(ctx, existing); err != nil {
		return nil, fmt.Errorf("updating association: %w", err)
	}
	if err := tx.LogAction(ctx, entities.ActionLink, entities.AssociationSubject(p.Name, existing.LeftID), map[string]any{
		"right_id": existing.RightID,
		"metadata": metadata,
		"updated":  true,
	}); err != nil {
		return nil, fmt.Errorf("logging link: %w", err)
	}
	return &LinkResult{Association: existing, Updated: true}, nil
}

// Unlink removes the association between leftID and rightID. Removing a
// pair that is not linked is a no-op and reports false.
func (s *AssociationService) Unlink(ctx context.Context, pivot, leftID, rightID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Association.Service.Unlink", trace.WithAttributes(
		attribute.String("pivot", pivot),
		attribute.String("left_id", leftID),
		attribute.String("right_id", rightID),
	))
	defer span.End()

	var removed bool
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		if _, err := requirePivot(ctx, tx, pivot); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteAssociation(ctx, pivot, leftID, rightID)
		if err != nil {
			return fmt.Errorf("deleting association: %w", err)
		}
		if !removed {
			return nil
		}
		if err := tx.LogAction(ctx, entities.ActionUnlink, entities.AssociationSubject(pivot, leftID), map[string]any{
			"right_id": rightID,
		}); err != nil {
			return fmt.Errorf("logging unlink: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	if removed {
		s.invalidate(ctx, CacheKey(pivot, leftID))
		s.publish(ctx, entities.ChangeEvent{
			Type:    entities.ChangeUnlinked,
			Pivot:   pivot,
			LeftID:  leftID,
			Removed: []string{rightID},
			At:      s.now(),
		})
	}
	s.logger.Debug("unlink", "pivot", pivot, "left", leftID, "right", rightID, "removed", removed)
	return removed, nil
}

// Synchronize makes the right-ID set of req.LeftID equal to req.RightIDs.
// Additions and removals are applied in one transaction; on any error
// nothing is applied.
func (s *AssociationService) Synchronize(ctx context.Context, req SyncRequest) (*entities.SyncResult, error) {
	ctx, span := tracer.Start(ctx, "Association.Service.Synchronize", trace.WithAttributes(
		attribute.String("pivot", req.Pivot),
		attribute.String("left_id", req.LeftID),
		attribute.Int("targets", len(req.RightIDs)),
	))
	defer span.End()

	target := entities.UniqueSorted(req.RightIDs)
	if target == nil {
		target = []string{}
	}

	result := &entities.SyncResult{Pivot: req.Pivot, LeftID: req.LeftID}
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		p, err := requirePivot(ctx, tx, req.Pivot)
		if err != nil {
			return err
		}

		left, err := tx.LockEntity(ctx, p.LeftCollection, req.LeftID)
		if err != nil {
			return fmt.Errorf("locking %s %s: %w", p.LeftCollection, req.LeftID, err)
		}
		if left == nil {
			return entities.NotFoundError{Resource: p.LeftCollection, IDs: []string{req.LeftID}}
		}

		if err := requireEntities(ctx, tx, p.RightCollection, target); err != nil {
			return err
		}

		assocs, err := tx.FindAssociations(ctx, p.Name, entities.SideLeft, req.LeftID)
		if err != nil {
			return fmt.Errorf("finding associations: %w", err)
		}
		current := entities.RightIDs(assocs)
		if req.IfMatch != "" {
			if actual := entities.Fingerprint(current); actual != req.IfMatch {
				return entities.StaleFingerprintError{Expected: req.IfMatch, Actual: actual}
			}
		}

		result.ToAdd, result.ToRemove = entities.ComputeDiff(current, target)
		if !result.Changed() {
			return nil
		}

		for _, rightID := range result.ToRemove {
			if _, err := tx.DeleteAssociation(ctx, p.Name, req.LeftID, rightID); err != nil {
				return fmt.Errorf("removing %s: %w", rightID, err)
			}
		}
		now := s.now()
		for _, rightID := range result.ToAdd {
			assoc := &entities.Association{
				ID:        uuid.New().String(),
				Pivot:     p.Name,
				LeftID:    req.LeftID,
				RightID:   rightID,
				Metadata:  entities.CloneMetadata(req.Metadata),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.SaveAssociation(ctx, assoc); err != nil {
				return fmt.Errorf("adding %s: %w", rightID, err)
			}
		}

		if err := tx.LogAction(ctx, entities.ActionSynchronize, entities.AssociationSubject(p.Name, req.LeftID), map[string]any{
			"to_add":    result.ToAdd,
			"to_remove": result.ToRemove,
		}); err != nil {
			return fmt.Errorf("logging synchronize: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result.Current = target
	result.Fingerprint = entities.Fingerprint(target)

	if result.Changed() {
		s.invalidate(ctx, CacheKey(req.Pivot, req.LeftID))
		s.publish(ctx, entities.ChangeEvent{
			Type:    entities.ChangeSynchronized,
			Pivot:   req.Pivot,
			LeftID:  req.LeftID,
			Added:   result.ToAdd,
			Removed: result.ToRemove,
			At:      s.now(),
		})
	}
	s.logger.Debug("synchronize", "pivot", req.Pivot, "left", req.LeftID,
		"added", len(result.ToAdd), "removed", len(result.ToRemove))
	return result, nil
}

// RightIDs returns the sorted right IDs linked to leftID, served from the
// cache when possible.
func (s *AssociationService) RightIDs(ctx context.Context, pivot, leftID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Association.Service.RightIDs")
	defer span.End()

	key := CacheKey(pivot, leftID)
	if s.cache != nil {
		ids, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		} else if ok {
			return ids, nil
		}
	}

	start := s.fillStart()
	assocs, err := s.ListByLeft(ctx, pivot, leftID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ids := entities.RightIDs(assocs)
	s.fill(ctx, start, key, ids)
	return ids, nil
}

// Fingerprint returns the fingerprint of the right-ID set of leftID.
func (s *AssociationService) Fingerprint(ctx context.Context, pivot, leftID string) (string, error) {
	ids, err := s.RightIDs(ctx, pivot, leftID)
	if err != nil {
		return "", err
	}
	return entities.Fingerprint(ids), nil
}

// ListByLeft returns the associations of a left entity ordered by right ID.
func (s *AssociationService) ListByLeft(ctx context.Context, pivot, leftID string) ([]entities.Association, error) {
	return s.listBySide(ctx, pivot, entities.SideLeft, leftID)
}

// ListByRight returns the associations of a right entity ordered by left ID.
func (s *AssociationService) ListByRight(ctx context.Context, pivot, rightID string) ([]entities.Association, error) {
	return s.listBySide(ctx, pivot, entities.SideRight, rightID)
}

func (s *AssociationService) listBySide(ctx context.Context, pivot string, side entities.Side, id string) ([]entities.Association, error) {
	p, err := requirePivot(ctx, s.relationalDB, pivot)
	if err != nil {
		return nil, err
	}
	if err := requireEntity(ctx, s.relationalDB, p.Collection(side), id); err != nil {
		return nil, err
	}
	assocs, err := s.relationalDB.FindAssociations(ctx, pivot, side, id)
	if err != nil {
		return nil, fmt.Errorf("finding associations: %w", err)
	}
	return assocs, nil
}

// Get returns the association for a pair.
func (s *AssociationService) Get(ctx context.Context, pivot, leftID, rightID string) (*entities.Association, error) {
	assoc, err := s.relationalDB.FindAssociation(ctx, pivot, leftID, rightID)
	if err != nil {
		return nil, fmt.Errorf("finding association: %w", err)
	}
	if assoc == nil {
		return nil, entities.NotFoundError{Resource: "association", IDs: []string{pivot + "/" + leftID + "/" + rightID}}
	}
	return assoc, nil
}

// List returns the associations of a pivot with pagination.
func (s *AssociationService) List(ctx context.Context, pivot string, limit, offset int) ([]entities.Association, error) {
	if _, err := requirePivot(ctx, s.relationalDB, pivot); err != nil {
		return nil, err
	}
	return s.relationalDB.ListAssociations(ctx, pivot, limit, offset)
}

// Count returns the number of associations in a pivot.
func (s *AssociationService) Count(ctx context.Context, pivot string) (int, error) {
	if _, err := requirePivot(ctx, s.relationalDB, pivot); err != nil {
		return 0, err
	}
	return s.relationalDB.CountAssociations(ctx, pivot)
}

// History returns the audit entries of a left entity within a pivot.
func (s *AssociationService) History(ctx context.Context, pivot, leftID string) ([]entities.AuditEntry, error) {
	return s.relationalDB.FindAuditLog(ctx, entities.AssociationSubject(pivot, leftID))
}

// HistoryByAction returns the latest audit entries for an action.
func (s *AssociationService) HistoryByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	return s.relationalDB.FindAuditLogByAction(ctx, action, limit)
}

func requireEntity(ctx context.Context, db ports.RelationalDB, collection, id string) error {
	e, err := db.FindEntity(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("finding %s %s: %w", collection, id, err)
	}
	if e == nil {
		return entities.NotFoundError{Resource: collection, IDs: []string{id}}
	}
	return nil
}

// requireEntities fails with one NotFoundError naming every missing ID.
// ids must be sorted and unique.
func requireEntities(ctx context.Context, db ports.RelationalDB, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := db.FindEntitiesByIDs(ctx, collection, ids)
	if err != nil {
		return fmt.Errorf("finding %s: %w", collection, err)
	}
	if len(found) == len(ids) {
		return nil
	}
	have := make(map[string]bool, len(found))
	for _, e := range found {
		have[e.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return entities.NotFoundError{Resource: collection, IDs: missing}
}
