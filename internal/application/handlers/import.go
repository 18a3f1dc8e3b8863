package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ersonp/pivot/internal/domain/services"
	"github.com/ersonp/pivot/internal/infrastructure/parsers"
)

// ImportHandler handles importing links from files.
type ImportHandler struct {
	service *services.ImportService
}

// NewImportHandler creates a new import handler.
func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format        string                    // "json", "csv", or "auto"
	Pivot         string                    // Pivot for rows that name none
	DryRun        bool                      // Validate without saving
	OnConflict    services.ConflictStrategy // How to handle pairs already linked
	CreateMissing bool                      // Create unknown entities
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int                    `json:"imported"`
	Updated  int                    `json:"updated"`
	Skipped  int                    `json:"skipped"`
	Created  int                    `json:"created"`
	Errors   []services.ImportError `json:"errors,omitempty"`
}

// Handle imports links from a file.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	// Get parser
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}

	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	// Open file
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	return h.handle(ctx, parser, file, opts)
}

// HandleReader imports links from r in the given format.
func (h *ImportHandler) HandleReader(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	parser := parsers.ForFormat(opts.Format)
	if parser == nil {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, opts.Format)
	}
	return h.handle(ctx, parser, r, opts)
}

func (h *ImportHandler) handle(ctx context.Context, parser parsers.Parser, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	rawLinks, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing input: %v", ErrInvalidInput, err)
	}

	if len(rawLinks) == 0 {
		return &ImportResult{}, nil
	}

	serviceResult, err := h.service.Import(ctx, rawLinks, services.ImportOptions{
		DryRun:        opts.DryRun,
		OnConflict:    opts.OnConflict,
		Pivot:         opts.Pivot,
		CreateMissing: opts.CreateMissing,
	})
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		Imported: serviceResult.Imported,
		Updated:  serviceResult.Updated,
		Skipped:  serviceResult.Skipped,
		Created:  serviceResult.Created,
		Errors:   serviceResult.Errors,
	}, nil
}
