package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNoRevision is returned when the project is not inside a repository or
// the repository has no commits yet.
var ErrNoRevision = errors.New("no source revision")

// dirtySuffix marks revisions whose worktree has uncommitted changes.
const dirtySuffix = "-dirty"

// Revision returns the HEAD commit hash of the repository containing root.
// Parent directories are searched for the .git directory.
func Revision(root string) (string, error) {
	repo, err := open(root)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("%w: repository has no commits", ErrNoRevision)
		}
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Describe returns the abbreviated HEAD hash, suffixed with -dirty when the
// worktree has uncommitted changes.
func Describe(root string) (string, error) {
	repo, err := open(root)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("%w: repository has no commits", ErrNoRevision)
		}
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	rev := ref.Hash().String()[:12]

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to be dirty.
		if errors.Is(err, git.ErrIsBareRepository) {
			return rev, nil
		}
		return "", fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("worktree status: %w", err)
	}
	if !status.IsClean() {
		rev += dirtySuffix
	}
	return rev, nil
}

// RevisionFunc adapts Describe to the build service's revision hook.
func RevisionFunc(root string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		return Describe(root)
	}
}

func open(root string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s is not in a git repository", ErrNoRevision, root)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}
