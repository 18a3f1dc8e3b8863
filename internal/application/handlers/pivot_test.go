package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

func TestPivotHandler_HandleCreate_InvalidPolicy(t *testing.T) {
	h := setupHandlers(t)

	_, err := h.pivots.HandleCreate(context.Background(), PivotInput{
		Name: "tags", Left: "posts", Right: "tags", OnDelete: "nullify",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestPivotHandler_HandleSeed(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)

	declared := &config.PivotsConfig{Pivots: map[string]config.PivotEntry{
		"tags":        {Left: "posts", Right: "tags", OnDuplicate: "reject"},
		"enrollments": {Left: "students", Right: "courses", OnDelete: "restrict"},
	}}
	require.NoError(t, h.pivots.HandleSeed(ctx, declared))

	pivots, err := h.pivots.HandleList(ctx)
	require.NoError(t, err)
	require.Len(t, pivots, 2)

	p, err := h.pivots.HandleGet(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, entities.DeleteRestrict, p.OnDelete)

	tags, err := h.pivots.HandleGet(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, entities.DuplicateReject, tags.OnDuplicate)

	require.NoError(t, h.pivots.HandleSeed(ctx, nil))
}

func TestPivotHandler_HandleDelete(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)
	_, err := h.associations.HandleLink(ctx, LinkInput{Pivot: "enrollments", LeftID: "A1", RightID: "B101"})
	require.NoError(t, err)

	removed, err := h.pivots.HandleDelete(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = h.pivots.HandleGet(ctx, "enrollments")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
