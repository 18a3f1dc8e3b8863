package entities

import "time"

// ChangeType identifies the kind of change carried by a ChangeEvent.
type ChangeType string

const (
	ChangeLinked        ChangeType = "linked"
	ChangeUnlinked      ChangeType = "unlinked"
	ChangeSynchronized  ChangeType = "synchronized"
	ChangeEntityDeleted ChangeType = "entity_deleted"
	ChangePivotDeleted  ChangeType = "pivot_deleted"
)

// ChangeEvent is published after a committed change to associations.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	Pivot      string     `json:"pivot,omitempty"`
	Collection string     `json:"collection,omitempty"`
	LeftID     string     `json:"left_id,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	Added      []string   `json:"added,omitempty"`
	Removed    []string   `json:"removed,omitempty"`
	At         time.Time  `json:"at"`
}
