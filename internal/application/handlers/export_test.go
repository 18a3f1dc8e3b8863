package handlers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
)

func seedLinks(t *testing.T, h *testHandlers) {
	t.Helper()
	ctx := context.Background()
	links := []LinkInput{
		{Pivot: "enrollments", LeftID: "A1", RightID: "B101", Metadata: map[string]any{"role": "student"}},
		{Pivot: "enrollments", LeftID: "A1", RightID: "B102", Metadata: map[string]any{"grade": "A|B"}},
		{Pivot: "enrollments", LeftID: "A2", RightID: "B101"},
	}
	for _, l := range links {
		_, err := h.associations.HandleLink(ctx, l)
		require.NoError(t, err)
	}
}

func TestExportHandler_CSV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)
	seedLinks(t, h)

	var buf bytes.Buffer
	n, err := h.exports.Handle(ctx, &buf, "enrollments", "csv", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "pivot,left,right,grade,role", lines[0])
	assert.Equal(t, "enrollments,A1,B101,,student", lines[1])

	// The export imports cleanly into a fresh pivot state.
	_, err = h.pivots.HandleDelete(ctx, "enrollments")
	require.NoError(t, err)
	_, err = h.pivots.HandleCreate(ctx, PivotInput{Name: "enrollments", Left: "students", Right: "courses"})
	require.NoError(t, err)

	result, err := h.imports.HandleReader(ctx, &buf, ImportOptions{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
}

func TestExportHandler_JSON(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)
	seedLinks(t, h)

	var buf bytes.Buffer
	n, err := h.exports.Handle(ctx, &buf, "enrollments", "json", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), `"left": "A1"`)
	assert.Contains(t, buf.String(), `"role": "student"`)
}

func TestExportHandler_Markdown(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)
	seedLinks(t, h)

	var buf bytes.Buffer
	_, err := h.exports.Handle(ctx, &buf, "enrollments", "markdown", 0)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# enrollments\n"))
	assert.Contains(t, out, "| Left | Right | grade | role |")
	assert.Contains(t, out, `A\|B`)
}

func TestExportHandler_Errors(t *testing.T) {
	ctx := context.Background()
	h := setupHandlers(t)

	_, err := h.exports.Handle(ctx, &bytes.Buffer{}, "enrollments", "xml", 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = h.exports.Handle(ctx, &bytes.Buffer{}, "missing", "json", 0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
