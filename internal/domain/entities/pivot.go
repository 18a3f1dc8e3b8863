package entities

import (
	"errors"
	"fmt"
	"time"
)

// DeletePolicy decides what happens to associations when an entity they
// reference is deleted.
type DeletePolicy string

const (
	// DeleteCascade removes the entity's associations together with it.
	DeleteCascade DeletePolicy = "cascade"
	// DeleteRestrict refuses to delete an entity that still has associations.
	DeleteRestrict DeletePolicy = "restrict"
)

// DuplicatePolicy decides what link does when the pair is already linked.
type DuplicatePolicy string

const (
	// DuplicateUpdate merges the supplied metadata into the existing record.
	DuplicateUpdate DuplicatePolicy = "update"
	// DuplicateIgnore keeps the existing record untouched.
	DuplicateIgnore DuplicatePolicy = "ignore"
	// DuplicateReject fails with a ConflictError.
	DuplicateReject DuplicatePolicy = "reject"
)

// Side selects one end of a pivot.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Pivot defines a many-to-many junction between two collections.
type Pivot struct {
	Name            string          `json:"name"`
	LeftCollection  string          `json:"left_collection"`
	RightCollection string          `json:"right_collection"`
	OnDelete        DeletePolicy    `json:"on_delete"`
	OnDuplicate     DuplicatePolicy `json:"on_duplicate"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Collection returns the collection on the given side of the pivot.
func (p *Pivot) Collection(side Side) string {
	if side == SideRight {
		return p.RightCollection
	}
	return p.LeftCollection
}

// Touches reports whether the pivot joins the given collection and on which
// sides. A self-referencing pivot touches both sides.
func (p *Pivot) Touches(collection string) []Side {
	var sides []Side
	if p.LeftCollection == collection {
		sides = append(sides, SideLeft)
	}
	if p.RightCollection == collection {
		sides = append(sides, SideRight)
	}
	return sides
}

// ApplyDefaults fills empty policies with their defaults.
func (p *Pivot) ApplyDefaults() {
	if p.OnDelete == "" {
		p.OnDelete = DeleteCascade
	}
	if p.OnDuplicate == "" {
		p.OnDuplicate = DuplicateUpdate
	}
}

// Validate checks the pivot definition.
func (p *Pivot) Validate() error {
	if p.Name == "" {
		return errors.New("pivot name is required")
	}
	if p.LeftCollection == "" || p.RightCollection == "" {
		return fmt.Errorf("pivot %s: both collections are required", p.Name)
	}
	if _, err := ParseDeletePolicy(string(p.OnDelete)); err != nil {
		return fmt.Errorf("pivot %s: %w", p.Name, err)
	}
	if _, err := ParseDuplicatePolicy(string(p.OnDuplicate)); err != nil {
		return fmt.Errorf("pivot %s: %w", p.Name, err)
	}
	return nil
}

// ParseDeletePolicy validates and converts a string to DeletePolicy.
// An empty string yields the default.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch s {
	case "", "cascade":
		return DeleteCascade, nil
	case "restrict":
		return DeleteRestrict, nil
	default:
		return "", fmt.Errorf("invalid delete policy: %s (valid: cascade, restrict)", s)
	}
}

// ParseDuplicatePolicy validates and converts a string to DuplicatePolicy.
// An empty string yields the default.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "update":
		return DuplicateUpdate, nil
	case "ignore":
		return DuplicateIgnore, nil
	case "reject":
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("invalid duplicate policy: %s (valid: update, ignore, reject)", s)
	}
}
