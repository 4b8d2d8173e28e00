// Package audit records per-user account activity: AI generations, credit
// changes and administrative edits. Entries are kept newest first in a
// capped list under audit:<userId> and shown to administrators.
//
// Recording never blocks the operation being recorded; failures are
// logged and dropped.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb".

const (
	ActionAIGenerate    = "ai.generate"
	ActionCreditsDebit  = "credits.debit"
	ActionCreditsAdjust = "credits.adjust"
	ActionUserUpdated   = "user.updated"
	ActionUserDeleted   = "user.deleted"
)

// Entry is a single recorded action.
type Entry struct {
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
