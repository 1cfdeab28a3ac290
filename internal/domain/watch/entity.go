package watch

import (
	"path/filepath"
	"strings"
	"time"
)

type ChangeType string

const (
	Created  ChangeType = "created"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// EmptyContent stands in for missing file content when forwarding to the aggregator.
const EmptyContent = "empty"

// Repository is a git working tree registered for watching.
type Repository struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Path         string     `json:"path" db:"path"`
	IsWatching   bool       `json:"is_watching" db:"is_watching"`
	TotalChanges int64      `json:"total_changes" db:"total_changes"`
	LastChange   *time.Time `json:"last_change,omitempty" db:"last_change"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// FileChange is one observed change inside a watched repository.
type FileChange struct {
	ID              string     `json:"id" db:"id"`
	RepositoryID    string     `json:"repository_id" db:"repository_id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	FilePath        string     `json:"file_path" db:"file_path"`
	RelativePath    string     `json:"relative_path" db:"relative_path"`
	ChangeType      ChangeType `json:"change_type" db:"change_type"`
	GitDiff         string     `json:"git_diff" db:"git_diff"`
	Author          string     `json:"author" db:"author"`
	AuthorEmail     string     `json:"author_email" db:"author_email"`
	CommitHash      string     `json:"commit_hash,omitempty" db:"commit_hash"`
	FileExtension   string     `json:"file_extension" db:"file_extension"`
	LinesAdded      int        `json:"lines_added" db:"lines_added"`
	LinesRemoved    int        `json:"lines_removed" db:"lines_removed"`
	PreviousContent string     `json:"-" db:"previous_content"`
	CurrentContent  string     `json:"-" db:"current_content"`
	IsProcessed     bool       `json:"is_processed" db:"is_processed"`
	SentToAI        bool       `json:"sent_to_ai" db:"sent_to_ai"`
	CreatedAt       time.Time  `json:"timestamp" db:"created_at"`
}

// ForwardPayload is the body posted to the aggregator's ingest endpoint.
type ForwardPayload struct {
	UserID     int64  `json:"user_id"`
	FilePath   string `json:"file_path"`
	ChangeType string `json:"change_type"`
	PreviousV  string `json:"previousV"`
	CurrentV   string `json:"currentV"`
}

// Payload maps the change onto the aggregator contract. created becomes added and
// missing content becomes EmptyContent.
func (c *FileChange) Payload() ForwardPayload {
	ct := string(c.ChangeType)
	if c.ChangeType == Created {
		ct = "added"
	}
	prev, cur := orEmpty(c.PreviousContent), orEmpty(c.CurrentContent)
	switch c.ChangeType {
	case Created:
		prev = EmptyContent
	case Deleted:
		cur = EmptyContent
	}
	return ForwardPayload{
		UserID:     c.UserID,
		FilePath:   filepath.ToSlash(c.RelativePath),
		ChangeType: ct,
		PreviousV:  prev,
		CurrentV:   cur,
	}
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return EmptyContent
	}
	return s
}

// ChangeFilter narrows change listings.
type ChangeFilter struct {
	RepositoryID string
	Limit        int
}

type Stats struct {
	TotalChanges int64            `json:"total_changes"`
	SentToAI     int64            `json:"sent_to_ai"`
	PendingAI    int64            `json:"pending_ai"`
	SuccessRate  float64          `json:"success_rate"`
	ByType       map[string]int64 `json:"by_type"`
	Last24h      int64            `json:"last_24h"`
	RepositoryID string           `json:"repository_id,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// PendingResult reports one forward attempt made by ProcessPending.
type PendingResult struct {
	ChangeID     string `json:"change_id"`
	UserID       int64  `json:"user_id"`
	RelativePath string `json:"relative_path"`
	Sent         bool   `json:"sent"`
	Error        string `json:"error,omitempty"`
}

// Event is what the live feed broadcasts.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
