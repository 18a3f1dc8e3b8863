// Package parsers reads association rows for bulk import.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawLink is one imported row before validation. Pivot may be empty when
// the import names a default pivot.
type RawLink struct {
	Pivot    string         `json:"pivot,omitempty"`
	Left     string         `json:"left"`
	Right    string         `json:"right"`
	Metadata map[string]any `json:"metadata,omitempty"`
	LineNum  int            `json:"-"`
}

// Parser turns an input stream into raw links.
type Parser interface {
	Parse(r io.Reader) ([]RawLink, error)
}

// FormatOf infers the import format from a file name, or "" if unknown.
func FormatOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return "json"
	case ".csv":
		return "csv"
	}
	return ""
}

// ForFormat returns the parser for "json" or "csv", or nil.
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	}
	return nil
}

// ForFile returns the parser matching the file's extension, or nil.
func ForFile(filename string) Parser {
	return ForFormat(FormatOf(filename))
}
