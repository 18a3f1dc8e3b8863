package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
)

// AssociationHandler handles association operations.
type AssociationHandler struct {
	service *services.AssociationService
}

// NewAssociationHandler creates a new AssociationHandler.
func NewAssociationHandler(service *services.AssociationService) *AssociationHandler {
	return &AssociationHandler{
		service: service,
	}
}

// LinkInput describes a link request.
type LinkInput struct {
	Pivot    string         `json:"pivot"`
	LeftID   string         `json:"left_id"`
	RightID  string         `json:"right_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SyncInput describes a synchronize request.
type SyncInput struct {
	Pivot    string         `json:"pivot"`
	LeftID   string         `json:"left_id"`
	RightIDs []string       `json:"right_ids"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IfMatch  string         `json:"if_match,omitempty"`
}

// ListOptions selects which associations to list. Exactly one of LeftID
// and RightID may be set; with neither, the whole pivot is listed.
type ListOptions struct {
	Pivot   string
	LeftID  string
	RightID string
	Limit   int
	Offset  int
}

// ListResult contains the result of listing associations.
type ListResult struct {
	Pivot        string                 `json:"pivot"`
	Associations []entities.Association `json:"associations"`
	Total        int                    `json:"total"`
	// Fingerprint is set when listing by left ID.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ErrInvalidInput marks request validation failures.
var ErrInvalidInput = errors.New("invalid input")

func required(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f[0])
		}
	}
	return nil
}

// HandleLink links two entities.
func (h *AssociationHandler) HandleLink(ctx context.Context, in LinkInput) (*services.LinkResult, error) {
	if err := required([2]string{"pivot", in.Pivot}, [2]string{"left id", in.LeftID}, [2]string{"right id", in.RightID}); err != nil {
		return nil, err
	}
	return h.service.Link(ctx, in.Pivot, in.LeftID, in.RightID, in.Metadata)
}

// HandleUnlink removes the link between two entities.
func (h *AssociationHandler) HandleUnlink(ctx context.Context, pivot, leftID, rightID string) (bool, error) {
	if err := required([2]string{"pivot", pivot}, [2]string{"left id", leftID}, [2]string{"right id", rightID}); err != nil {
		return false, err
	}
	return h.service.Unlink(ctx, pivot, leftID, rightID)
}

// HandleSync replaces the right-ID set of a left entity.
func (h *AssociationHandler) HandleSync(ctx context.Context, in SyncInput) (*entities.SyncResult, error) {
	if err := required([2]string{"pivot", in.Pivot}, [2]string{"left id", in.LeftID}); err != nil {
		return nil, err
	}
	for _, id := range in.RightIDs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty right id", ErrInvalidInput)
		}
	}
	return h.service.Synchronize(ctx, services.SyncRequest{
		Pivot:    in.Pivot,
		LeftID:   in.LeftID,
		RightIDs: in.RightIDs,
		Metadata: in.Metadata,
		IfMatch:  in.IfMatch,
	})
}

// HandleList lists associations by left ID, right ID, or the whole pivot.
func (h *AssociationHandler) HandleList(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if err := required([2]string{"pivot", opts.Pivot}); err != nil {
		return nil, err
	}
	if opts.LeftID != "" && opts.RightID != "" {
		return nil, fmt.Errorf("%w: use either left or right, not both", ErrInvalidInput)
	}

	result := &ListResult{Pivot: opts.Pivot}
	var err error
	switch {
	case opts.LeftID != "":
		result.Associations, err = h.service.ListByLeft(ctx, opts.Pivot, opts.LeftID)
		if err == nil {
			result.Fingerprint = entities.Fingerprint(entities.RightIDs(result.Associations))
		}
	case opts.RightID != "":
		result.Associations, err = h.service.ListByRight(ctx, opts.Pivot, opts.RightID)
	default:
		result.Associations, err = h.service.List(ctx, opts.Pivot, opts.Limit, opts.Offset)
		if err == nil {
			result.Total, err = h.service.Count(ctx, opts.Pivot)
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Total = len(result.Associations)
	return result, nil
}

// HandleRightIDs returns the right IDs of a left entity and their fingerprint.
func (h *AssociationHandler) HandleRightIDs(ctx context.Context, pivot, leftID string) ([]string, string, error) {
	ids, err := h.service.RightIDs(ctx, pivot, leftID)
	if err != nil {
		return nil, "", err
	}
	return ids, entities.Fingerprint(ids), nil
}

// HistoryOptions selects audit entries either by association subject or by action.
type HistoryOptions struct {
	Pivot  string
	LeftID string
	Action string
	Limit  int
}

// HandleHistory returns audit log entries.
func (h *AssociationHandler) HandleHistory(ctx context.Context, opts HistoryOptions) ([]entities.AuditEntry, error) {
	if opts.Action != "" {
		return h.service.HistoryByAction(ctx, opts.Action, opts.Limit)
	}
	if err := required([2]string{"pivot", opts.Pivot}, [2]string{"left id", opts.LeftID}); err != nil {
		return nil, err
	}
	entries, err := h.service.History(ctx, opts.Pivot, opts.LeftID)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}
