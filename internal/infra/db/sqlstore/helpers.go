package sqlstore

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

// insertID runs an INSERT written with ? placeholders and returns the new id.
// Postgres has no LastInsertId, so RETURNING is appended there.
func insertID(ctx context.Context, ex sqlx.ExtContext, q string, args ...any) (int64, error) {
	if ex.DriverName() == "postgres" {
		var id int64
		err := ex.QueryRowxContext(ctx, ex.Rebind(q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := ex.ExecContext(ctx, ex.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// column widths of test_cases in the mysql and postgres schemas
const (
	testTypeWidth = 32
	priorityWidth = 16
)

// clip cuts s to at most n runes so model text cannot overflow a VARCHAR column.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// jsonOrObject makes sure JSON columns always receive a valid document.
// Invalid input is wrapped as {"raw": "..."}.
func jsonOrObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(s), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": s})
		return string(b)
	}
	return s
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
