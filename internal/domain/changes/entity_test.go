package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionValidate(t *testing.T) {
	valid := Submission{UserID: 1, FilePath: "a.py", ChangeType: ChangeModified, PreviousV: "v1", CurrentV: "v2"}

	tests := []struct {
		name    string
		mutate  func(*Submission)
		wantErr string
	}{
		{name: "valid", mutate: func(*Submission) {}},
		{name: "missing user", mutate: func(s *Submission) { s.UserID = 0 }, wantErr: "user_id"},
		{name: "blank path", mutate: func(s *Submission) { s.FilePath = "  " }, wantErr: "file_path"},
		{name: "missing change type", mutate: func(s *Submission) { s.ChangeType = "" }, wantErr: "change_type"},
		{name: "missing previous", mutate: func(s *Submission) { s.PreviousV = "" }, wantErr: "previousV"},
		{name: "missing current", mutate: func(s *Submission) { s.CurrentV = "" }, wantErr: "currentV"},
		{name: "unknown change type", mutate: func(s *Submission) { s.ChangeType = "renamed" }, wantErr: "must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecordExtension(t *testing.T) {
	tests := map[string]string{
		"a.py":             "py",
		"src/App.TSX":      "tsx",
		"docs/README":      "",
		"archive.tar.gz":   "gz",
		"trailing.":        "",
		"dir.v2/Makefile":  "",
		`win\path\main.cs`: "cs",
		".github/ci.yml":   "yml",
	}
	for path, want := range tests {
		assert.Equal(t, want, Record{FilePath: path}.Extension(), path)
	}
}
