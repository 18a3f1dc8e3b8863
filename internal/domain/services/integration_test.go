package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/domain/services"
	"github.com/ersonp/pivot/internal/infrastructure/cache"
	"github.com/ersonp/pivot/internal/infrastructure/config"
	"github.com/ersonp/pivot/internal/infrastructure/events"
	"github.com/ersonp/pivot/internal/infrastructure/relationaldb/postgres"
	"github.com/ersonp/pivot/internal/infrastructure/relationaldb/sqlite"
)

// stack wires the services over a real store the way the CLI does.
type stack struct {
	pivots       *services.PivotService
	entities     *services.EntityService
	associations *services.AssociationService
	cache        ports.AssociationCache
	// invalidator drops this stack's cached sets on events from elsewhere.
	invalidator *services.CacheInvalidator
}

func newStack(db ports.RelationalDB, c ports.AssociationCache, pub ports.EventPublisher) *stack {
	opts := []services.Option{services.WithCache(c), services.WithPublisher(pub)}
	return &stack{
		pivots:       services.NewPivotService(db, opts...),
		entities:     services.NewEntityService(db, opts...),
		associations: services.NewAssociationService(db, opts...),
		cache:        c,
		invalidator:  services.NewCacheInvalidator(opts...),
	}
}

func (s *stack) seed(t *testing.T, onDelete entities.DeletePolicy) {
	t.Helper()
	ctx := context.Background()

	_, err := s.pivots.Create(ctx, entities.Pivot{
		Name:            "enrollments",
		LeftCollection:  "students",
		RightCollection: "courses",
		OnDelete:        onDelete,
	})
	require.NoError(t, err)
	for _, id := range []string{"A1", "A2"} {
		_, err := s.entities.Save(ctx, "students", id, "Student "+id)
		require.NoError(t, err)
	}
	for _, id := range []string{"B101", "B102", "B103"} {
		_, err := s.entities.Save(ctx, "courses", id, "Course "+id)
		require.NoError(t, err)
	}
}

func newSQLiteStore(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func newSQLiteFile(t *testing.T, path string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func receive(t *testing.T, ch <-chan entities.ChangeEvent) entities.ChangeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return entities.ChangeEvent{}
	}
}

func TestIntegration_SQLite_LinkSyncDelete(t *testing.T) {
	ctx := context.Background()
	hub := events.NewHub(nil)
	s := newStack(newSQLiteStore(t), cache.NewMemory(time.Minute), hub)
	s.seed(t, entities.DeleteCascade)

	changes, cancel := hub.Subscribe(events.Filter{Pivot: "enrollments", LeftID: "A1"})
	defer cancel()

	_, err := s.associations.Link(ctx, "enrollments", "A1", "B101", map[string]any{"grade": 90})
	require.NoError(t, err)
	e := receive(t, changes)
	assert.Equal(t, entities.ChangeLinked, e.Type)
	assert.Equal(t, []string{"B101"}, e.Added)

	// Reading fills the cache.
	ids, err := s.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B101"}, ids)
	cached, ok, err := s.cache.Get(ctx, services.CacheKey("enrollments", "A1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"B101"}, cached)

	res, err := s.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A1",
		RightIDs: []string{"B102", "B103"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B102", "B103"}, res.ToAdd)
	assert.Equal(t, []string{"B101"}, res.ToRemove)
	e = receive(t, changes)
	assert.Equal(t, entities.ChangeSynchronized, e.Type)

	// Synchronize invalidated the cached set.
	_, ok, err = s.cache.Get(ctx, services.CacheKey("enrollments", "A1"))
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = s.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B102", "B103"}, ids)

	del, err := s.entities.Delete(ctx, "courses", "B102")
	require.NoError(t, err)
	assert.Equal(t, 1, del.Cascaded["enrollments"])

	ids, err = s.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B103"}, ids)

	history, err := s.associations.History(ctx, "enrollments", "A1")
	require.NoError(t, err)
	actions := make([]string, len(history))
	for i, h := range history {
		actions[i] = h.Action
	}
	assert.Contains(t, actions, entities.ActionLink)
	assert.Contains(t, actions, entities.ActionSynchronize)
}

func TestIntegration_SQLite_SyncRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStack(newSQLiteStore(t), cache.NewMemory(0), nil)
	s.seed(t, entities.DeleteCascade)

	_, err := s.associations.Link(ctx, "enrollments", "A1", "B101", nil)
	require.NoError(t, err)
	before, err := s.associations.Fingerprint(ctx, "enrollments", "A1")
	require.NoError(t, err)

	_, err = s.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A1",
		RightIDs: []string{"B102", "B404"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	ids, err := s.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B101"}, ids)

	_, err = s.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A1",
		RightIDs: []string{"B102"},
		IfMatch:  before + "0",
	})
	assert.ErrorIs(t, err, entities.ErrConflict)

	res, err := s.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A1",
		RightIDs: []string{"B102"},
		IfMatch:  before,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.Fingerprint([]string{"B102"}), res.Fingerprint)
}

func TestIntegration_SQLite_RestrictDelete(t *testing.T) {
	ctx := context.Background()
	s := newStack(newSQLiteStore(t), nil, nil)
	s.seed(t, entities.DeleteRestrict)

	_, err := s.associations.Link(ctx, "enrollments", "A1", "B101", nil)
	require.NoError(t, err)

	_, err = s.entities.Delete(ctx, "students", "A1")
	assert.ErrorIs(t, err, entities.ErrIntegrity)

	found, err := s.entities.Find(ctx, "students", "A1")
	require.NoError(t, err)
	assert.NotNil(t, found)

	_, err = s.entities.Delete(ctx, "students", "A2")
	require.NoError(t, err)
}

// Two processes share one database file, each with its own memory cache.
// Changes made by one reach the other's cache through the event channel.
func TestIntegration_SQLite_SharedFileMemoryCaches(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	reader := newStack(newSQLiteFile(t, path), cache.NewMemory(10*time.Minute), nil)
	channel := events.Multi{reader.invalidator}
	writer := newStack(newSQLiteFile(t, path), cache.NewMemory(10*time.Minute), channel)
	writer.seed(t, entities.DeleteCascade)

	_, err := writer.associations.Link(ctx, "enrollments", "A1", "B101", nil)
	require.NoError(t, err)

	ids, err := reader.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B101"}, ids)

	_, err = writer.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A1",
		RightIDs: []string{"B102", "B103"},
	})
	require.NoError(t, err)

	ids, err = reader.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B102", "B103"}, ids)

	_, err = writer.entities.Delete(ctx, "courses", "B102")
	require.NoError(t, err)
	ids, err = reader.associations.RightIDs(ctx, "enrollments", "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B103"}, ids)

	_, err = writer.pivots.Delete(ctx, "enrollments")
	require.NoError(t, err)
	_, ok, err := reader.cache.Get(ctx, services.CacheKey("enrollments", "A1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestIntegration_PostgresRedis runs the same flow against PostgreSQL with
// the Redis cache, relaying events through Redis pub/sub into a hub.
func TestIntegration_PostgresRedis(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("INTEGRATION_TEST not set")
	}
	dsn := os.Getenv("PIVOT_POSTGRES_DSN")
	addr := os.Getenv("PIVOT_TEST_REDIS_ADDR")
	if dsn == "" || addr == "" {
		t.Skip("PIVOT_POSTGRES_DSN and PIVOT_TEST_REDIS_ADDR are required")
	}
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	repo, err := postgres.NewRepository(config.PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(ctx))
	if _, err := services.NewPivotService(repo).Delete(ctx, "enrollments"); err != nil {
		require.ErrorIs(t, err, entities.ErrNotFound)
	}

	rdb := cache.NewRedisClient(config.RedisConfig{Addr: addr})
	defer rdb.Close()
	const channel = "pivot-integration-events"

	hub := events.NewHub(nil)
	relay := events.NewRedisPublisher(rdb, channel)
	go func() { _ = relay.Subscribe(ctx, hub) }()
	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] > 0
	}, 5*time.Second, 50*time.Millisecond)

	s := newStack(repo, cache.NewRedis(rdb, "pivot-it:", time.Minute), relay)
	for _, c := range []string{"students", "courses"} {
		list, err := s.entities.List(ctx, c, 0, 0)
		require.NoError(t, err)
		for _, e := range list {
			_, err := s.entities.Delete(ctx, c, e.ID)
			require.NoError(t, err)
		}
	}
	s.seed(t, entities.DeleteCascade)

	changes, cancel := hub.Subscribe(events.Filter{Pivot: "enrollments"})
	defer cancel()

	res, err := s.associations.Synchronize(ctx, services.SyncRequest{
		Pivot:    "enrollments",
		LeftID:   "A2",
		RightIDs: []string{"B101", "B103"},
	})
	require.NoError(t, err)
	assert.True(t, res.Changed())

	e := receive(t, changes)
	assert.Equal(t, entities.ChangeSynchronized, e.Type)
	assert.Equal(t, "A2", e.LeftID)
	assert.Equal(t, []string{"B101", "B103"}, e.Added)

	ids, err := s.associations.RightIDs(ctx, "enrollments", "A2")
	require.NoError(t, err)
	assert.Equal(t, []string{"B101", "B103"}, ids)
	cached, ok, err := s.cache.Get(ctx, services.CacheKey("enrollments", "A2"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids, cached)
}
