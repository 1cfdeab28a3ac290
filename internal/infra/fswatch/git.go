package fswatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const unknownAuthor = "unknown"

// ValidateRepository checks that path is a directory holding a git working tree.
func ValidateRepository(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if _, err := git.PlainOpen(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// Author is the identity attached to a change.
type Author struct {
	Name   string
	Email  string
	Commit string
}

// gitInfo answers history questions about one working tree.
type gitInfo struct {
	repo *git.Repository
}

func openGit(path string) (*gitInfo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return &gitInfo{repo: repo}, nil
}

// author returns the author of the last commit touching rel, else the configured
// user identity, else "unknown".
func (g *gitInfo) author(rel string) Author {
	rel = filepath.ToSlash(rel)
	if c, err := g.lastCommit(rel); err == nil {
		return Author{Name: c.Author.Name, Email: c.Author.Email, Commit: c.Hash.String()[:7]}
	}
	if cfg, err := g.repo.ConfigScoped(config.GlobalScope); err == nil && cfg.User.Name != "" {
		return Author{Name: cfg.User.Name, Email: cfg.User.Email}
	}
	return Author{Name: unknownAuthor}
}

func (g *gitInfo) lastCommit(rel string) (*object.Commit, error) {
	iter, err := g.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	return iter.Next()
}

// headContent returns rel as committed at HEAD.
func (g *gitInfo) headContent(rel string) (string, bool) {
	ref, err := g.repo.Head()
	if err != nil {
		return "", false
	}
	commit, err := g.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", false
	}
	f, err := commit.File(filepath.ToSlash(rel))
	// object.ErrFileNotFound for files added after HEAD
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	if err != nil {
		return "", false
	}
	return content, true
}
