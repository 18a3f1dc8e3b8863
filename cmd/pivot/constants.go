package main

const (
	// DefaultListLimit bounds entity and association listings.
	DefaultListLimit = 50
	// DefaultHistoryLimit bounds audit log output.
	DefaultHistoryLimit = 20
	// DefaultExportLimit bounds exports unless --limit 0 is given.
	DefaultExportLimit = 1000
)

// validFormats are the export renderers of handlers.ExportHandler.
var validFormats = []string{"json", "csv", "markdown"}
