package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// reservedColumns are the CSV columns that are not metadata.
var reservedColumns = map[string]bool{"pivot": true, "left": true, "right": true}

// CSVParser parses links from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed links.
// Expected columns: left, right and optionally pivot. Every other column
// becomes a metadata key; empty cells are left out.
func (p *CSVParser) Parse(r io.Reader) ([]RawLink, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, header)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if seen[col] {
			return nil, fmt.Errorf("duplicate column: %s", col)
		}
		seen[col] = true
		header[i] = col
	}

	for _, col := range []string{"left", "right"} {
		if !seen[col] {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return header, nil
}

// readRecords reads all data rows and converts them to RawLinks.
func (p *CSVParser) readRecords(reader *csv.Reader, header []string) ([]RawLink, error) {
	var links []RawLink
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		links = append(links, p.parseRecord(record, header, lineNum))
	}

	return links, nil
}

// parseRecord converts a CSV record to a RawLink.
func (p *CSVParser) parseRecord(record []string, header []string, lineNum int) RawLink {
	link := RawLink{LineNum: lineNum}
	for i, col := range header {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		switch col {
		case "pivot":
			link.Pivot = value
		case "left":
			link.Left = value
		case "right":
			link.Right = value
		default:
			if value == "" {
				continue
			}
			if link.Metadata == nil {
				link.Metadata = make(map[string]any)
			}
			link.Metadata[col] = value
		}
	}
	return link
}
