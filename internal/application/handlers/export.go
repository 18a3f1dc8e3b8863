package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
)

// ExportFormats lists the supported export formats.
var ExportFormats = []string{"json", "csv", "markdown"}

// ExportHandler writes the associations of a pivot in a portable format.
type ExportHandler struct {
	service *services.AssociationService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(service *services.AssociationService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Handle writes up to limit associations of pivot to w and returns how many
// were written. The JSON and CSV outputs can be read back by import.
func (h *ExportHandler) Handle(ctx context.Context, w io.Writer, pivot, format string, limit int) (int, error) {
	assocs, err := h.service.List(ctx, pivot, limit, 0)
	if err != nil {
		return 0, err
	}

	switch format {
	case "json":
		err = exportJSON(w, pivot, assocs)
	case "csv":
		err = exportCSV(w, pivot, assocs)
	case "markdown":
		err = exportMarkdown(w, pivot, assocs)
	default:
		return 0, fmt.Errorf("%w: unknown format %q (valid: %s)", ErrInvalidInput, format, strings.Join(ExportFormats, ", "))
	}
	if err != nil {
		return 0, fmt.Errorf("formatting output: %w", err)
	}
	return len(assocs), nil
}

func exportJSON(w io.Writer, pivot string, assocs []entities.Association) error {
	type exportLink struct {
		Pivot    string         `json:"pivot"`
		Left     string         `json:"left"`
		Right    string         `json:"right"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	links := make([]exportLink, 0, len(assocs))
	for i := range assocs {
		links = append(links, exportLink{
			Pivot:    pivot,
			Left:     assocs[i].LeftID,
			Right:    assocs[i].RightID,
			Metadata: assocs[i].Metadata,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// metadataKeys returns the union of metadata keys in sorted order.
func metadataKeys(assocs []entities.Association) []string {
	seen := make(map[string]bool)
	var keys []string
	for i := range assocs {
		for k := range assocs[i].Metadata {
			if !seen[k] && !reservedExportColumn(k) {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func reservedExportColumn(k string) bool {
	switch strings.ToLower(k) {
	case "pivot", "left", "right":
		return true
	}
	return false
}

func metadataValue(md map[string]any, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func exportCSV(w io.Writer, pivot string, assocs []entities.Association) error {
	writer := csv.NewWriter(w)
	keys := metadataKeys(assocs)

	header := append([]string{"pivot", "left", "right"}, keys...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := range assocs {
		row := []string{pivot, assocs[i].LeftID, assocs[i].RightID}
		for _, k := range keys {
			row = append(row, metadataValue(assocs[i].Metadata, k))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func exportMarkdown(w io.Writer, pivot string, assocs []entities.Association) error {
	keys := metadataKeys(assocs)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", pivot)
	fmt.Fprintf(&b, "%d association(s)\n\n", len(assocs))
	if len(assocs) > 0 {
		header := append([]string{"Left", "Right"}, keys...)
		b.WriteString("| " + strings.Join(header, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
		for i := range assocs {
			cells := []string{escapeMarkdown(assocs[i].LeftID), escapeMarkdown(assocs[i].RightID)}
			for _, k := range keys {
				cells = append(cells, escapeMarkdown(metadataValue(assocs[i].Metadata, k)))
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
