package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

// PivotHandler handles pivot definitions.
type PivotHandler struct {
	service *services.PivotService
}

// NewPivotHandler creates a new PivotHandler.
func NewPivotHandler(service *services.PivotService) *PivotHandler {
	return &PivotHandler{service: service}
}

// PivotInput describes a pivot to create.
type PivotInput struct {
	Name        string `json:"name"`
	Left        string `json:"left"`
	Right       string `json:"right"`
	OnDelete    string `json:"on_delete,omitempty"`
	OnDuplicate string `json:"on_duplicate,omitempty"`
	Description string `json:"description,omitempty"`
}

func (in PivotInput) toPivot() (entities.Pivot, error) {
	onDelete, err := entities.ParseDeletePolicy(in.OnDelete)
	if err != nil {
		return entities.Pivot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	onDuplicate, err := entities.ParseDuplicatePolicy(in.OnDuplicate)
	if err != nil {
		return entities.Pivot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return entities.Pivot{
		Name:            in.Name,
		LeftCollection:  in.Left,
		RightCollection: in.Right,
		OnDelete:        onDelete,
		OnDuplicate:     onDuplicate,
		Description:     in.Description,
	}, nil
}

// HandleCreate creates a pivot.
func (h *PivotHandler) HandleCreate(ctx context.Context, in PivotInput) (*entities.Pivot, error) {
	p, err := in.toPivot()
	if err != nil {
		return nil, err
	}
	return h.service.Create(ctx, p)
}

// HandleList returns all pivots.
func (h *PivotHandler) HandleList(ctx context.Context) ([]entities.Pivot, error) {
	return h.service.List(ctx)
}

// HandleGet returns one pivot.
func (h *PivotHandler) HandleGet(ctx context.Context, name string) (*entities.Pivot, error) {
	return h.service.Get(ctx, name)
}

// HandleDelete removes a pivot and its associations.
func (h *PivotHandler) HandleDelete(ctx context.Context, name string) (int, error) {
	return h.service.Delete(ctx, name)
}

// HandleSeed stores the pivots declared in pivots.yaml.
func (h *PivotHandler) HandleSeed(ctx context.Context, declared *config.PivotsConfig) error {
	if declared == nil || len(declared.Pivots) == 0 {
		return nil
	}
	names := make([]string, 0, len(declared.Pivots))
	for name := range declared.Pivots {
		names = append(names, name)
	}
	sort.Strings(names)

	pivots := make([]entities.Pivot, 0, len(names))
	for _, name := range names {
		entry := declared.Pivots[name]
		p, err := PivotInput{
			Name:        name,
			Left:        entry.Left,
			Right:       entry.Right,
			OnDelete:    entry.OnDelete,
			OnDuplicate: entry.OnDuplicate,
			Description: entry.Description,
		}.toPivot()
		if err != nil {
			return fmt.Errorf("pivot %s: %w", name, err)
		}
		pivots = append(pivots, p)
	}
	return h.service.Seed(ctx, pivots)
}
