package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle pairs that are already linked during import.
type ConflictStrategy string

const (
	// ConflictSkip leaves existing associations untouched.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictOverwrite replaces the metadata of existing associations.
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ParseConflictStrategy validates a conflict strategy; empty means skip.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch s {
	case "", string(ConflictSkip):
		return ConflictSkip, nil
	case string(ConflictOverwrite):
		return ConflictOverwrite, nil
	default:
		return "", fmt.Errorf("invalid conflict strategy: %s (valid: skip, overwrite)", s)
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun        bool             // Validate and roll back
	OnConflict    ConflictStrategy // How to handle pairs already linked
	Pivot         string           // Pivot for rows that name none
	CreateMissing bool             // Create unknown entities, named by their ID
}

// ImportError represents an error for a specific link during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Updated  int
	Skipped  int
	Created  int // Entities created by CreateMissing
	Errors   []ImportError
}

// ImportService handles importing links from external sources.
type ImportService struct {
	relationalDB ports.RelationalDB
	notifier
}

// NewImportService creates a new import service.
func NewImportService(relationalDB ports.RelationalDB, opts ...Option) *ImportService {
	return &ImportService{
		relationalDB: relationalDB,
		notifier:     newNotifier("import", opts),
	}
}

var errDryRun = errors.New("dry run")

// Import validates raw links and applies the valid ones in one transaction.
// Rows that fail validation are reported in the result and do not stop
// the others; a storage error rolls back the whole import.
func (s *ImportService) Import(ctx context.Context, rawLinks []parsers.RawLink, opts ImportOptions) (*ImportResult, error) {
	ctx, span := tracer.Start(ctx, "Import.Service.Import")
	defer span.End()

	result := &ImportResult{}
	valid, validationErrors := s.validateLinks(rawLinks, opts.Pivot)
	result.Errors = validationErrors
	if len(valid) == 0 {
		return result, nil
	}

	var added map[string][]string
	err := s.relationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		imp := &importer{tx: tx, opts: opts, result: result, pivots: map[string]*entities.Pivot{}, added: map[string][]string{}}
		for i := range valid {
			if err := imp.apply(ctx, &valid[i]); err != nil {
				return err
			}
		}
		added = imp.added

		if result.Imported+result.Updated > 0 {
			if err := tx.LogAction(ctx, entities.ActionImport, "", map[string]any{
				"imported": result.Imported,
				"updated":  result.Updated,
				"skipped":  result.Skipped,
				"created":  result.Created,
			}); err != nil {
				return fmt.Errorf("logging import: %w", err)
			}
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		span.RecordError(err)
		return nil, fmt.Errorf("importing links: %w", err)
	}
	if opts.DryRun {
		return result, nil
	}

	keys := make([]string, 0, len(added))
	for key := range added {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	s.invalidate(ctx, keys...)
	for _, key := range keys {
		pivot, leftID, _ := strings.Cut(key, ":")
		s.publish(ctx, entities.ChangeEvent{
			Type:   entities.ChangeLinked,
			Pivot:  pivot,
			LeftID: leftID,
			Added:  added[key],
			At:     time.Now(),
		})
	}
	s.logger.Debug("import", "imported", result.Imported, "updated", result.Updated,
		"skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

// validateLinks validates raw links and returns valid ones with any errors.
func (s *ImportService) validateLinks(rawLinks []parsers.RawLink, defaultPivot string) ([]parsers.RawLink, []ImportError) {
	valid := make([]parsers.RawLink, 0, len(rawLinks))
	var errs []ImportError

	for i := range rawLinks {
		raw := rawLinks[i]
		if raw.LineNum == 0 {
			raw.LineNum = i + 1
		}
		if raw.Pivot == "" {
			raw.Pivot = defaultPivot
		}
		if err := validateRawLink(&raw); err != nil {
			errs = append(errs, *err)
			continue
		}
		valid = append(valid, raw)
	}

	return valid, errs
}

// validateRawLink validates a single raw link and returns an error if invalid.
func validateRawLink(raw *parsers.RawLink) *ImportError {
	if raw.Pivot == "" {
		return &ImportError{Line: raw.LineNum, Field: "pivot", Message: "missing required field: pivot"}
	}
	if raw.Left == "" {
		return &ImportError{Line: raw.LineNum, Field: "left", Message: "missing required field: left"}
	}
	if raw.Right == "" {
		return &ImportError{Line: raw.LineNum, Field: "right", Message: "missing required field: right"}
	}
	if strings.Contains(raw.Left, "/") {
		return &ImportError{Line: raw.LineNum, Field: "left", Value: raw.Left, Message: "entity id must not contain '/'"}
	}
	if strings.Contains(raw.Right, "/") {
		return &ImportError{Line: raw.LineNum, Field: "right", Value: raw.Right, Message: "entity id must not contain '/'"}
	}
	return nil
}

// importer applies validated links inside one transaction.
type importer struct {
	tx     ports.RelationalDB
	opts   ImportOptions
	result *ImportResult
	pivots map[string]*entities.Pivot
	added  map[string][]string
}

func (imp *importer) pivot(ctx context.Context, name string) (*entities.Pivot, error) {
	if p, ok := imp.pivots[name]; ok {
		return p, nil
	}
	p, err := imp.tx.FindPivot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding pivot %s: %w", name, err)
	}
	imp.pivots[name] = p
	return p, nil
}

// ensureEntity reports whether the entity exists, creating it when allowed.
func (imp *importer) ensureEntity(ctx context.Context, collection, id string) (bool, error) {
	e, err := imp.tx.FindEntity(ctx, collection, id)
	if err != nil {
		return false, fmt.Errorf("finding %s %s: %w", collection, id, err)
	}
	if e != nil {
		return true, nil
	}
	if !imp.opts.CreateMissing {
		return false, nil
	}
	if err := imp.tx.SaveEntity(ctx, &entities.Entity{
		Collection:     collection,
		ID:             id,
		Name:           id,
		NormalizedName: entities.NormalizeName(id),
		CreatedAt:      time.Now(),
	}); err != nil {
		return false, fmt.Errorf("creating %s %s: %w", collection, id, err)
	}
	imp.result.Created++
	return true, nil
}

func (imp *importer) apply(ctx context.Context, raw *parsers.RawLink) error {
	p, err := imp.pivot(ctx, raw.Pivot)
	if err != nil {
		return err
	}
	if p == nil {
		imp.reject(raw, "pivot", raw.Pivot, fmt.Sprintf("unknown pivot %q", raw.Pivot))
		return nil
	}

	for _, end := range []struct{ field, collection, id string }{
		{"left", p.LeftCollection, raw.Left},
		{"right", p.RightCollection, raw.Right},
	} {
		ok, err := imp.ensureEntity(ctx, end.collection, end.id)
		if err != nil {
			return err
		}
		if !ok {
			imp.reject(raw, end.field, end.id, fmt.Sprintf("%s not found: %s", end.collection, end.id))
			return nil
		}
	}

	existing, err := imp.tx.FindAssociation(ctx, p.Name, raw.Left, raw.Right)
	if err != nil {
		return fmt.Errorf("line %d: finding association: %w", raw.LineNum, err)
	}
	now := time.Now()
	if existing != nil {
		if imp.opts.OnConflict != ConflictOverwrite {
			imp.result.Skipped++
			return nil
		}
		existing.Metadata = entities.CloneMetadata(raw.Metadata)
		existing.UpdatedAt = now
		if err := imp.tx.SaveAssociation(ctx, existing); err != nil {
			return fmt.Errorf("line %d: updating association: %w", raw.LineNum, err)
		}
		imp.result.Updated++
		return nil
	}

	if err := imp.tx.SaveAssociation(ctx, &entities.Association{
		ID:        uuid.New().String(),
		Pivot:     p.Name,
		LeftID:    raw.Left,
		RightID:   raw.Right,
		Metadata:  entities.CloneMetadata(raw.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("line %d: saving association: %w", raw.LineNum, err)
	}
	imp.result.Imported++
	key := CacheKey(p.Name, raw.Left)
	imp.added[key] = append(imp.added[key], raw.Right)
	return nil
}

func (imp *importer) reject(raw *parsers.RawLink, field, value, msg string) {
	imp.result.Errors = append(imp.result.Errors, ImportError{
		Line:    raw.LineNum,
		Field:   field,
		Value:   value,
		Message: msg,
	})
}
