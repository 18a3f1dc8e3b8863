package entities

import "time"

// Audit actions.
const (
	ActionLink         = "link"
	ActionUnlink       = "unlink"
	ActionSynchronize  = "synchronize"
	ActionDeleteEntity = "delete_entity"
	ActionDeletePivot  = "delete_pivot"
	ActionImport       = "import"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	Subject   string         `json:"subject,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AssociationSubject is the audit subject for changes to a left entity's
// associations within a pivot.
func AssociationSubject(pivot, leftID string) string {
	return pivot + "/" + leftID
}
