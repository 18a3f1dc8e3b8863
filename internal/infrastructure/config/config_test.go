package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "enrollments",
			expected: "enrollments",
		},
		{
			name:     "uppercase converted",
			input:    "Enrollments",
			expected: "enrollments",
		},
		{
			name:     "spaces to underscores",
			input:    "course teachers",
			expected: "course_teachers",
		},
		{
			name:     "hyphens to underscores",
			input:    "course-teachers",
			expected: "course_teachers",
		},
		{
			name:     "special characters removed",
			input:    "roles@users!",
			expected: "rolesusers",
		},
		{
			name:     "consecutive underscores collapsed",
			input:    "role--users",
			expected: "role_users",
		},
		{
			name:     "leading trailing underscores trimmed",
			input:    "-role-users-",
			expected: "role_users",
		},
		{
			name:     "only special chars returns empty",
			input:    "!!!",
			expected: "",
		},
		{
			name:     "complex mixed input",
			input:    "Student Courses (2024)",
			expected: "student_courses_2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(".pivot", "pivot.db"), cfg.SQLite.Path)
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Tracing.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestMemoryCacheCoherent(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		expected bool
	}{
		{name: "shared sqlite file", mutate: func(*Config) {}, expected: false},
		{name: "private sqlite", mutate: func(c *Config) { c.SQLite.Path = ":memory:" }, expected: true},
		{
			name: "postgres",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Postgres.DSN = "host=db"
			},
			expected: false,
		},
		{
			name: "postgres with events channel",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Events.RedisChannel = "pivot.changes"
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Equal(t, tt.expected, cfg.MemoryCacheCoherent())
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("default yaml parses", func(t *testing.T) {
		cfg, err := Parse([]byte(DefaultConfigYAML))
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, "pivot:", cfg.Cache.Prefix)
		assert.Equal(t, CacheNone, cfg.Cache.Driver)
	})

	t.Run("overrides defaults", func(t *testing.T) {
		cfg, err := Parse([]byte("cache:\n  driver: redis\n  ttl: 30s\nredis:\n  addr: cache:6379\n  db: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, CacheRedis, cfg.Cache.Driver)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
		assert.Equal(t, "cache:6379", cfg.Redis.Addr)
		assert.Equal(t, 2, cfg.Redis.DB)
		// Untouched sections keep defaults
		assert.Equal(t, ":8080", cfg.Server.Addr)
	})

	t.Run("events section", func(t *testing.T) {
		cfg, err := Parse([]byte("events:\n  redis_channel: pivot.changes\n  log: true\n"))
		require.NoError(t, err)
		assert.Equal(t, "pivot.changes", cfg.Events.RedisChannel)
		assert.True(t, cfg.Events.Log)
	})

	t.Run("invalid driver", func(t *testing.T) {
		_, err := Parse([]byte("storage:\n  driver: oracle\n"))
		require.Error(t, err)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		_, err := Parse([]byte("storage:\n  driver: postgres\n"))
		require.Error(t, err)
	})

	t.Run("env dsn switches to postgres", func(t *testing.T) {
		t.Setenv("PIVOT_POSTGRES_DSN", "host=db")
		cfg, err := Parse([]byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
		assert.Equal(t, "host=db", cfg.Postgres.DSN)
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pivot init")
	})

	t.Run("default config resolves sqlite path", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, WriteDefault(dir))
		assert.True(t, Exists(dir))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, ".pivot", "pivot.db"), cfg.SQLite.Path)

		// A second init must not clobber the file
		require.Error(t, WriteDefault(dir))
	})

	t.Run("write round trip", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.SQLite.Path = ":memory:"
		cfg.Cache.Driver = CacheNone
		require.NoError(t, Write(dir, cfg))

		loaded, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, ":memory:", loaded.SQLite.Path)
		assert.Equal(t, CacheNone, loaded.Cache.Driver)
	})
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, "/home/user/project/.pivot", ConfigDir("/home/user/project"))
	assert.Equal(t, "/home/user/project/.pivot/config.yaml", ConfigFilePath("/home/user/project"))
	assert.Equal(t, "/home/user/project/.pivot/pivots.yaml", PivotsFilePath("/home/user/project"))
}

func TestPivotsConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		p, err := LoadPivots(dir)
		require.NoError(t, err)
		assert.Empty(t, p.Pivots)

		_, err = p.Get("enrollments")
		require.Error(t, err)
	})

	t.Run("add save load", func(t *testing.T) {
		p := &PivotsConfig{}
		p.Add("enrollments", PivotEntry{Left: "students", Right: "courses", OnDelete: "restrict"})
		p.Add("teaching", PivotEntry{Left: "teachers", Right: "courses"})
		require.NoError(t, p.Save(dir))

		info, err := os.Stat(PivotsFilePath(dir))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loaded, err := LoadPivots(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"enrollments", "teaching"}, loaded.Names())

		entry, err := loaded.Get("enrollments")
		require.NoError(t, err)
		assert.Equal(t, "students", entry.Left)
		assert.Equal(t, "restrict", entry.OnDelete)

		_, err = loaded.Get("missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "enrollments, teaching")
	})

	t.Run("remove", func(t *testing.T) {
		p, err := LoadPivots(dir)
		require.NoError(t, err)
		p.Remove("teaching")
		assert.False(t, p.Exists("teaching"))
		assert.True(t, p.Exists("enrollments"))
	})
}
