package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses links from JSON format.
type JSONParser struct{}

// Parse reads a JSON array of links from the reader.
func (p *JSONParser) Parse(r io.Reader) ([]RawLink, error) {
	var links []RawLink

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&links); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range links {
		links[i].LineNum = i + 1
	}

	return links, nil
}
