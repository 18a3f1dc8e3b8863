// Package entities holds the domain types of the association store.
package entities

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Entity is a uniquely identified record in one collection. Entities on
// either side of a pivot are plain entities; the pivot decides which
// collection plays the left or right role.
type Entity struct {
	Collection     string    `json:"collection"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`            // Display name (e.g., "Linear Algebra")
	NormalizedName string    `json:"normalized_name"` // Folded for matching (e.g., "linear algebra")
	CreatedAt      time.Time `json:"created_at"`
}

// Key returns the collection-scoped key of the entity.
func (e *Entity) Key() string {
	return e.Collection + "/" + e.ID
}

// NormalizeName folds a name for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}
