package audit

import "time"

const (
	ActionChangeSubmitted     = "change.submitted"
	ActionCompletionFailed    = "completion.unavailable"
	ActionChatFailed          = "chat.unavailable"
	ActionAnalysisPersistFail = "analysis.persist_failed"
)

// Entry is a persisted audit_logs row.
type Entry struct {
	ID          int64     `json:"id" db:"id"`
	UserID      *int64    `json:"user_id,omitempty" db:"user_id"`
	ChangeID    *int64    `json:"change_id,omitempty" db:"change_id"`
	Action      string    `json:"action" db:"action"`
	Message     string    `json:"message" db:"message"`
	DetailsJSON string    `json:"details_json,omitempty" db:"details_json"` // raw JSON string
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
