package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var repoNamePattern = regexp.MustCompile(`^[\w .\-]{1,100}$`)

// ValidateRepositoryName accepts letters, digits, space, dot, dash and underscore.
func ValidateRepositoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if !repoNamePattern.MatchString(name) {
		return fmt.Errorf("invalid repository name (letters, digits, space, dot, dash, underscore; max 100 chars)")
	}
	return nil
}

// ValidatePath validates a local repository path
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleaned := filepath.Clean(path)
	for _, b := range []string{"/proc", "/sys", "/dev", "/boot"} {
		if cleaned == b || strings.HasPrefix(cleaned, b+"/") {
			return fmt.Errorf("access to %s is not allowed", b)
		}
	}

	dangerous := []string{"$(", "`", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(path, d) {
			return fmt.Errorf("invalid characters in path")
		}
	}
	return nil
}

// ValidateUUID validates watched repository and file change ids.
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid id format")
	}
	return nil
}

// ParseID parses a positive numeric change id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return id, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit clamps a list limit into [1, maxLimit]; zero or negative means def.
func ValidateLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ValidatePage parses optional page/page_size query values. Both empty means
// no paging (0, 0). page defaults to 1 and page_size is capped at 100.
func ValidatePage(rawPage, rawSize string) (page, size int, err error) {
	if rawPage == "" && rawSize == "" {
		return 0, 0, nil
	}
	page, size = 1, 20
	if rawPage != "" {
		if page, err = strconv.Atoi(rawPage); err != nil || page < 1 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
	}
	if rawSize != "" {
		if size, err = strconv.Atoi(rawSize); err != nil || size < 1 {
			return 0, 0, fmt.Errorf("page_size must be a positive integer")
		}
	}
	return page, min(size, 100), nil
}

// ParseLimit reads an optional numeric query value.
func ParseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	return ValidateLimit(n, def, maxLimit), nil
}
