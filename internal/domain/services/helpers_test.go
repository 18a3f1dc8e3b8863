package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/mocks"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
	"github.com/ersonp/pivot/internal/infrastructure/relationaldb/sqlite"
)

// backends returns constructors for every store the services are tested against.
func backends() map[string]func(t *testing.T) ports.RelationalDB {
	return map[string]func(t *testing.T) ports.RelationalDB{
		"mock": func(t *testing.T) ports.RelationalDB {
			return mocks.NewRelationalDB()
		},
		"sqlite": func(t *testing.T) ports.RelationalDB {
			t.Helper()
			repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
			require.NoError(t, err)
			t.Cleanup(func() { repo.Close() })
			require.NoError(t, repo.EnsureSchema(context.Background()))
			return repo
		},
	}
}

// forEachBackend runs fn as a subtest per store.
func forEachBackend(t *testing.T, fn func(t *testing.T, db ports.RelationalDB)) {
	t.Helper()
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

// seedEnrollments creates the students/courses pivot with students A1, A2
// and courses B101..B103.
func seedEnrollments(t *testing.T, db ports.RelationalDB, pivot entities.Pivot) {
	t.Helper()
	ctx := context.Background()

	if pivot.Name == "" {
		pivot.Name = "enrollments"
	}
	pivot.LeftCollection = "students"
	pivot.RightCollection = "courses"
	_, err := NewPivotService(db).Create(ctx, pivot)
	require.NoError(t, err)

	es := NewEntityService(db)
	for _, id := range []string{"A1", "A2"} {
		_, err := es.Save(ctx, "students", id, "Student "+id)
		require.NoError(t, err)
	}
	for _, id := range []string{"B101", "B102", "B103"} {
		_, err := es.Save(ctx, "courses", id, "Course "+id)
		require.NoError(t, err)
	}
}

var errInjected = errors.New("injected failure")

// faultyDB fails the n-th SaveAssociation made inside a transaction.
type faultyDB struct {
	ports.RelationalDB
	failAt int
	calls  *int
}

func newFaultyDB(inner ports.RelationalDB, failAt int) *faultyDB {
	return &faultyDB{RelationalDB: inner, failAt: failAt, calls: new(int)}
}

func (f *faultyDB) WithinTx(ctx context.Context, fn func(tx ports.RelationalDB) error) error {
	return f.RelationalDB.WithinTx(ctx, func(tx ports.RelationalDB) error {
		return fn(&faultyDB{RelationalDB: tx, failAt: f.failAt, calls: f.calls})
	})
}

func (f *faultyDB) SaveAssociation(ctx context.Context, assoc *entities.Association) error {
	*f.calls++
	if *f.calls == f.failAt {
		return errInjected
	}
	return f.RelationalDB.SaveAssociation(ctx, assoc)
}

// rightIDs reads the right-ID set straight from the store.
func rightIDs(t *testing.T, db ports.RelationalDB, pivot, leftID string) []string {
	t.Helper()
	assocs, err := db.FindAssociations(context.Background(), pivot, entities.SideLeft, leftID)
	require.NoError(t, err)
	return entities.RightIDs(assocs)
}
