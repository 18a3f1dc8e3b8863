package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pivot/internal/infrastructure/cache"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

func TestNewCache_MemoryNeedsCoherentStore(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	cfg := config.Default()
	cfg.Cache.Driver = config.CacheMemory

	c, err := newCache(cfg, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Contains(t, logs.String(), "memory cache disabled")

	cfg.Events.RedisChannel = "pivot.changes"
	c, err = newCache(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)
}

func TestNewCache_NoneByDefault(t *testing.T) {
	c, err := newCache(config.Default(), nil, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, c)
}
