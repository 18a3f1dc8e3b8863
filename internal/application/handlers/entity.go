package handlers

import (
	"context"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
)

// EntityHandler handles entity operations at the application layer.
type EntityHandler struct {
	entityService *services.EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityService *services.EntityService) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
	}
}

// EntityListResult contains the result of listing entities.
type EntityListResult struct {
	Entities []*entities.Entity `json:"entities"`
	Total    int                `json:"total"`
}

// HandleSave creates or renames an entity.
func (h *EntityHandler) HandleSave(ctx context.Context, collection, id, name string) (*entities.Entity, error) {
	if err := required([2]string{"collection", collection}); err != nil {
		return nil, err
	}
	return h.entityService.Save(ctx, collection, id, name)
}

// HandleGet returns one entity.
func (h *EntityHandler) HandleGet(ctx context.Context, collection, id string) (*entities.Entity, error) {
	return h.entityService.Find(ctx, collection, id)
}

// HandleList returns the entities of a collection with pagination.
func (h *EntityHandler) HandleList(ctx context.Context, collection string, limit, offset int) (*EntityListResult, error) {
	entitiesList, err := h.entityService.List(ctx, collection, limit, offset)
	if err != nil {
		return nil, err
	}

	count, err := h.entityService.Count(ctx, collection)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: entitiesList,
		Total:    count,
	}, nil
}

// HandleSearch searches entities by name fragment.
func (h *EntityHandler) HandleSearch(ctx context.Context, collection, query string, limit int) (*EntityListResult, error) {
	entitiesList, err := h.entityService.Search(ctx, collection, query, limit)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: entitiesList,
		Total:    len(entitiesList),
	}, nil
}

// HandleDelete removes an entity, applying each pivot's delete policy.
func (h *EntityHandler) HandleDelete(ctx context.Context, collection, id string) (*services.DeleteResult, error) {
	return h.entityService.Delete(ctx, collection, id)
}

// HandleCount returns the number of entities in a collection.
func (h *EntityHandler) HandleCount(ctx context.Context, collection string) (int, error) {
	return h.entityService.Count(ctx, collection)
}
