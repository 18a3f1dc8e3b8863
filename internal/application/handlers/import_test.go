package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportHandler_Handle_CSV(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)

	path := writeFile(t, "links.csv", "left,right,role\nA1,B101,student\nA1,B102,\nA2,B999,\n")
	result, err := h.imports.Handle(ctx, path, ImportOptions{Pivot: "enrollments"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Line)

	assoc, err := h.db.FindAssociation(ctx, "enrollments", "A1", "B101")
	require.NoError(t, err)
	assert.Equal(t, "student", assoc.Metadata["role"])
}

func TestImportHandler_Handle_JSON(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)

	path := writeFile(t, "links.json", `[{"pivot": "enrollments", "left": "A2", "right": "B103"}]`)
	result, err := h.imports.Handle(ctx, path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	count, err := h.db.CountAssociations(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "dry run stores nothing")
}

func TestImportHandler_Handle_Errors(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)

	_, err := h.imports.Handle(ctx, writeFile(t, "links.txt", "x"), ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = h.imports.Handle(ctx, filepath.Join(t.TempDir(), "missing.csv"), ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening file")

	_, err = h.imports.Handle(ctx, writeFile(t, "bad.csv", "left\nA1\n"), ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	empty, err := h.imports.Handle(ctx, writeFile(t, "empty.json", "[]"), ImportOptions{})
	require.NoError(t, err)
	assert.Zero(t, empty.Imported)
}

func TestImportHandler_HandleReader_Overwrite(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)
	_, err := h.associations.HandleLink(ctx, LinkInput{
		Pivot: "enrollments", LeftID: "A1", RightID: "B101", Metadata: map[string]any{"role": "student"},
	})
	require.NoError(t, err)

	result, err := h.imports.HandleReader(ctx, strings.NewReader("pivot,left,right,role\nenrollments,A1,B101,auditor\n"), ImportOptions{
		Format:     "csv",
		OnConflict: services.ConflictOverwrite,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	assoc, err := h.db.FindAssociation(ctx, "enrollments", "A1", "B101")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"role": "auditor"}, assoc.Metadata)

	_, err = h.imports.HandleReader(ctx, strings.NewReader(""), ImportOptions{Format: "xml"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = h.entities.HandleGet(ctx, "students", "A1")
	assert.False(t, errors.Is(err, entities.ErrNotFound))
}
