package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
)

// PivotService manages pivot definitions.
type PivotService struct {
	relationalDB ports.RelationalDB
	notifier
}

// NewPivotService creates a new PivotService.
func NewPivotService(relationalDB ports.RelationalDB, opts ...Option) *PivotService {
	return &PivotService{
		relationalDB: relationalDB,
		notifier:     newNotifier("pivots", opts),
	}
}

func normalizePivot(p *entities.Pivot) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.LeftCollection = strings.ToLower(strings.TrimSpace(p.LeftCollection))
	p.RightCollection = strings.ToLower(strings.TrimSpace(p.RightCollection))
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return entities.ValidationError{Reason: err.Error()}
	}
	for _, name := range []string{p.Name, p.LeftCollection, p.RightCollection} {
		if !validNameRegex.MatchString(name) {
			return entities.ValidationError{Reason: fmt.Sprintf("name %q must be lowercase alphanumeric with underscores, starting with a letter", name)}
		}
	}
	return nil
}

// Create stores a new pivot. An existing pivot of the same name is a conflict.
func (s *PivotService) Create(ctx context.Context, p entities.Pivot) (*entities.Pivot, error) {
	if err := normalizePivot(&p); err != nil {
		return nil, err
	}

	existing, err := s.relationalDB.FindPivot(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("checking pivot: %w", err)
	}
	if existing != nil {
		return nil, entities.ConflictError{Reason: fmt.Sprintf("pivot '%s' already exists", p.Name)}
	}

	p.CreatedAt = time.Now()
	if err := s.relationalDB.SavePivot(ctx, &p); err != nil {
		return nil, fmt.Errorf("saving pivot: %w", err)
	}
	s.logger.Debug("pivot created", "pivot", p.Name, "left", p.LeftCollection, "right", p.RightCollection)
	return &p, nil
}

// Seed stores the declared pivots, inserting missing ones and updating the
// policies of existing ones. Redeclaring a pivot over other collections is
// a conflict.
// Lists once then writes what differs.
func (s *PivotService) Seed(ctx context.Context, declared []entities.Pivot) error {
	existing, err := s.relationalDB.ListPivots(ctx)
	if err != nil {
		return fmt.Errorf("listing pivots: %w", err)
	}
	byName := make(map[string]entities.Pivot, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}

	var errs []error
	for _, p := range declared {
		if err := normalizePivot(&p); err != nil {
			errs = append(errs, err)
			continue
		}
		if cur, ok := byName[p.Name]; ok {
			if cur.LeftCollection != p.LeftCollection || cur.RightCollection != p.RightCollection {
				errs = append(errs, entities.ConflictError{Reason: fmt.Sprintf(
					"pivot '%s' joins %s and %s, cannot redeclare as %s and %s",
					p.Name, cur.LeftCollection, cur.RightCollection, p.LeftCollection, p.RightCollection)})
				continue
			}
			if cur.OnDelete == p.OnDelete && cur.OnDuplicate == p.OnDuplicate && cur.Description == p.Description {
				continue
			}
			p.CreatedAt = cur.CreatedAt
		} else {
			p.CreatedAt = time.Now()
		}
		if err := s.relationalDB.SavePivot(ctx, &p); err != nil {
			return fmt.Errorf("seeding pivot %s: %w", p.Name, err)
		}
	}
	return errors.Join(errs...)
}

// List returns all pivots.
func (s *PivotService) List(ctx context.Context) ([]entities.Pivot, error) {
	return s.relationalDB.ListPivots(ctx)
}

// Get returns a pivot by name.
func (s *PivotService) Get(ctx context.Context, name string) (*entities.Pivot, error) {
	return requirePivot(ctx, s.relationalDB, name)
}

// Delete removes a pivot and every association it holds. It returns the
// number of associations removed.
func (s *PivotService) Delete(ctx context.Context, name string) (int, error) {
	ctx, span := tracer.Start(ctx, "Pivot.Service.Delete")
	defer span.End()

	byLeft := map[string][]string{}
	var removed int
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		if _, err := requirePivot(ctx, tx, name); err != nil {
			return err
		}
		assocs, err := tx.ListAssociations(ctx, name, 0, 0)
		if err != nil {
			return fmt.Errorf("listing associations: %w", err)
		}
		removed = len(assocs)
		for i := range assocs {
			byLeft[assocs[i].LeftID] = append(byLeft[assocs[i].LeftID], assocs[i].RightID)
		}

		if err := tx.DeletePivot(ctx, name); err != nil {
			return fmt.Errorf("deleting pivot: %w", err)
		}
		return tx.LogAction(ctx, entities.ActionDeletePivot, name, map[string]any{"associations": removed})
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	keys := make([]string, 0, len(byLeft))
	for leftID := range byLeft {
		keys = append(keys, CacheKey(name, leftID))
	}
	s.invalidate(ctx, keys...)
	now := time.Now()
	s.publishRemovals(ctx, name, byLeft, now)
	s.publish(ctx, entities.ChangeEvent{
		Type:  entities.ChangePivotDeleted,
		Pivot: name,
		At:    now,
	})
	s.logger.Debug("pivot deleted", "pivot", name, "associations", removed)
	return removed, nil
}
