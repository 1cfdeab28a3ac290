package fswatch

import (
	"path/filepath"
	"strings"
)

var ignoredSegments = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".vscode":       true,
	".idea":         true,
	"venv":          true,
	"env":           true,
	".pytest_cache": true,
	"dist":          true,
	"build":         true,
	".DS_Store":     true,
	"Thumbs.db":     true,
}

var ignoredExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".log": true, ".tmp": true, ".temp": true,
	".cache": true, ".swp": true, ".swo": true, ".bak": true, ".orig": true,
}

// hidden files with these extensions are still watched
var hiddenAllowed = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
}

// ShouldIgnore reports whether rel (relative to the repository root) is noise:
// VCS and tooling directories, build output, editor swap files and hidden files.
func ShouldIgnore(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if ignoredSegments[seg] {
			return true
		}
	}

	base := filepath.Base(rel)
	ext := strings.ToLower(filepath.Ext(base))
	if ignoredExtensions[ext] || strings.HasSuffix(base, "~") {
		return true
	}
	if strings.HasPrefix(base, ".") && !hiddenAllowed[ext] {
		return true
	}
	return false
}
