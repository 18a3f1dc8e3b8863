// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

// StoreOpener opens the relational store described by a config.
type StoreOpener func(ctx context.Context, cfg *config.Config) (ports.RelationalDB, error)

// InitHandler handles project initialization.
type InitHandler struct {
	open StoreOpener
}

// NewInitHandler creates a new init handler. A nil opener skips schema creation.
func NewInitHandler(open StoreOpener) *InitHandler {
	return &InitHandler{open: open}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	PivotsPath string
	Driver     string
}

// Handle writes the default config and creates the database schema.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("pivot already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	pivots := &config.PivotsConfig{Pivots: map[string]config.PivotEntry{}}
	if err := pivots.Save(basePath); err != nil {
		return nil, fmt.Errorf("writing pivots file: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if h.open != nil {
		db, err := h.open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		PivotsPath: config.PivotsFilePath(basePath),
		Driver:     cfg.Storage.Driver,
	}, nil
}
