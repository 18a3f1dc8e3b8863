package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

// setupTestRepo connects to PIVOT_POSTGRES_DSN and clears the tables.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("PIVOT_POSTGRES_DSN")
	if os.Getenv("INTEGRATION_TEST") != "1" || dsn == "" {
		t.Skip("set INTEGRATION_TEST=1 and PIVOT_POSTGRES_DSN to run")
	}

	repo, err := NewRepository(config.PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.db.Exec("TRUNCATE audit_log, associations, entities, pivots").Error)
	return repo
}

func seedEnrollments(t *testing.T, repo *Repository, onDelete entities.DeletePolicy) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.SavePivot(ctx, &entities.Pivot{
		Name: "enrollments", LeftCollection: "students", RightCollection: "courses",
		OnDelete: onDelete, OnDuplicate: entities.DuplicateUpdate, CreatedAt: now,
	}))
	for _, e := range []struct{ collection, id string }{
		{"students", "A1"}, {"students", "A2"},
		{"courses", "B101"}, {"courses", "B102"}, {"courses", "B103"},
	} {
		require.NoError(t, repo.SaveEntity(ctx, &entities.Entity{
			Collection: e.collection, ID: e.id, Name: e.id,
			NormalizedName: entities.NormalizeName(e.id), CreatedAt: now,
		}))
	}
}

func newAssoc(id, left, right string) *entities.Association {
	now := time.Now().UTC()
	return &entities.Association{ID: id, Pivot: "enrollments", LeftID: left, RightID: right, CreatedAt: now, UpdatedAt: now}
}

func TestNewRepository_RequiresDSN(t *testing.T) {
	_, err := NewRepository(config.PostgresConfig{})
	assert.Error(t, err)
}

func TestRepository_Pivots(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedEnrollments(t, repo, entities.DeleteCascade)

	p, err := repo.FindPivot(ctx, "enrollments")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "students", p.LeftCollection)

	p.OnDuplicate = entities.DuplicateReject
	require.NoError(t, repo.SavePivot(ctx, p))
	p, err = repo.FindPivot(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, entities.DuplicateReject, p.OnDuplicate)

	missing, err := repo.FindPivot(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.DeletePivot(ctx, "nope")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestRepository_Associations(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedEnrollments(t, repo, entities.DeleteCascade)

	a := newAssoc("a1", "A1", "B101")
	a.Metadata = map[string]any{"grade": "A"}
	require.NoError(t, repo.SaveAssociation(ctx, a))
	require.NoError(t, repo.SaveAssociation(ctx, newAssoc("a2", "A1", "B102")))
	require.NoError(t, repo.SaveAssociation(ctx, newAssoc("a3", "A2", "B102")))

	// Same pair with a new id updates in place.
	again := newAssoc("ignored", "A1", "B101")
	again.Metadata = map[string]any{"grade": "B"}
	require.NoError(t, repo.SaveAssociation(ctx, again))

	got, err := repo.FindAssociation(ctx, "enrollments", "A1", "B101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "B", got.Metadata["grade"])

	left, err := repo.FindAssociations(ctx, "enrollments", entities.SideLeft, "A1")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "B101", left[0].RightID)

	right, err := repo.FindAssociations(ctx, "enrollments", entities.SideRight, "B102")
	require.NoError(t, err)
	assert.Len(t, right, 2)

	all, err := repo.ListAssociations(ctx, "enrollments", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := repo.CountAssociationsByEntity(ctx, "enrollments", entities.SideRight, "B102")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := repo.DeleteAssociation(ctx, "enrollments", "A1", "B102")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.DeleteAssociation(ctx, "enrollments", "A1", "B102")
	require.NoError(t, err)
	assert.False(t, removed)

	err = repo.SaveAssociation(ctx, &entities.Association{ID: "x", Pivot: "nope", LeftID: "A1", RightID: "B101"})
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	// Missing entity violates the foreign key.
	err = repo.SaveAssociation(ctx, newAssoc("x", "A1", "B999"))
	assert.Error(t, err)

	// Referenced entity cannot be deleted.
	err = repo.DeleteEntity(ctx, "courses", "B101")
	assert.Error(t, err)

	require.NoError(t, repo.DeletePivot(ctx, "enrollments"))
	count, err := repo.CountAssociations(ctx, "enrollments")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_WithinTx(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedEnrollments(t, repo, entities.DeleteCascade)

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx ports.RelationalDB) error {
		locked, err := tx.LockEntity(ctx, "students", "A1")
		require.NoError(t, err)
		require.NotNil(t, locked)
		require.NoError(t, tx.SaveAssociation(ctx, newAssoc("a1", "A1", "B101")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := repo.CountAssociations(ctx, "enrollments")
	require.NoError(t, err)
	assert.Zero(t, n)

	err = repo.WithinTx(ctx, func(tx ports.RelationalDB) error {
		return tx.WithinTx(ctx, func(inner ports.RelationalDB) error {
			return inner.SaveAssociation(ctx, newAssoc("a1", "A1", "B101"))
		})
	})
	require.NoError(t, err)
	n, err = repo.CountAssociations(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogAction(ctx, entities.ActionLink, "enrollments/A1", map[string]any{"right_id": "B101"}))
	require.NoError(t, repo.LogAction(ctx, entities.ActionUnlink, "enrollments/A1", nil))

	entries, err := repo.FindAuditLog(ctx, "enrollments/A1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.ActionUnlink, entries[0].Action)

	byAction, err := repo.FindAuditLogByAction(ctx, entities.ActionLink, 10)
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "B101", byAction[0].Details["right_id"])
}
