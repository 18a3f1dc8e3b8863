package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// ParseMetadataPairs turns key=value flags into association metadata.
// Values that parse as JSON (numbers, booleans, quoted strings, arrays,
// objects) keep their type; anything else is a plain string.
func ParseMetadataPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (want key=value)", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil && value != "" {
			md[key] = parsed
		} else {
			md[key] = value
		}
	}
	return md, nil
}

func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return strings.Join(parts, " ")
}

func contains(list []string, s string) bool {
	return slices.Contains(list, s)
}
