package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/mocks"
	"github.com/ersonp/pivot/internal/domain/services"
)

type testHandlers struct {
	db           *mocks.RelationalDB
	pivots       *PivotHandler
	entities     *EntityHandler
	associations *AssociationHandler
	imports      *ImportHandler
	exports      *ExportHandler
}

// setupHandlers wires handlers over an in-memory store holding the
// enrollments pivot, students A1, A2 and courses B101..B103.
func setupHandlers(t *testing.T) *testHandlers {
	t.Helper()
	ctx := context.Background()
	db := mocks.NewRelationalDB()

	assocService := services.NewAssociationService(db)
	h := &testHandlers{
		db:           db,
		pivots:       NewPivotHandler(services.NewPivotService(db)),
		entities:     NewEntityHandler(services.NewEntityService(db)),
		associations: NewAssociationHandler(assocService),
		imports:      NewImportHandler(services.NewImportService(db)),
		exports:      NewExportHandler(assocService),
	}

	_, err := h.pivots.HandleCreate(ctx, PivotInput{Name: "enrollments", Left: "students", Right: "courses"})
	require.NoError(t, err)
	for _, id := range []string{"A1", "A2"} {
		_, err := h.entities.HandleSave(ctx, "students", id, "Student "+id)
		require.NoError(t, err)
	}
	for _, id := range []string{"B101", "B102", "B103"} {
		_, err := h.entities.HandleSave(ctx, "courses", id, "Course "+id)
		require.NoError(t, err)
	}
	return h
}
