package changes

import (
	"fmt"
	"strings"
	"time"
)

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeAdded, ChangeModified, ChangeDeleted:
		return true
	}
	return false
}

type Role string

const (
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
	RoleAdmin     Role = "admin"
)

// User submits changes. Rows come from seed data or the watcher's get-or-create.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Record is one persisted code change. It is also the payload forwarded to the
// analysis services.
type Record struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	UserName   string     `json:"user_name,omitempty" db:"user_name"`
	FilePath   string     `json:"file_path" db:"file_path"`
	ChangeType ChangeType `json:"change_type" db:"change_type"`
	PreviousV  string     `json:"previousV" db:"previous_v"`
	CurrentV   string     `json:"currentV" db:"current_v"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Extension returns the lower-cased text after the last dot of the file name, or "".
func (r Record) Extension() string {
	name := r.FilePath
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Submission is the inbound ingest body.
type Submission struct {
	UserID     int64      `json:"user_id"`
	FilePath   string     `json:"file_path"`
	ChangeType ChangeType `json:"change_type"`
	PreviousV  string     `json:"previousV"`
	CurrentV   string     `json:"currentV"`
}

// Validate requires all five fields to be present and non-empty.
func (s Submission) Validate() error {
	var missing []string
	if s.UserID <= 0 {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(s.FilePath) == "" {
		missing = append(missing, "file_path")
	}
	if strings.TrimSpace(string(s.ChangeType)) == "" {
		missing = append(missing, "change_type")
	}
	if s.PreviousV == "" {
		missing = append(missing, "previousV")
	}
	if s.CurrentV == "" {
		missing = append(missing, "currentV")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !s.ChangeType.Valid() {
		return fmt.Errorf("%w: change_type must be one of added, modified, deleted", ErrValidation)
	}
	return nil
}
