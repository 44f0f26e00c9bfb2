// Package gitrepo synchronizes the local site working copy with its remote.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Syncer is the repository capability used by the upload pipeline: pull the
// latest state before allocating an identifier, commit and push the new post
// after it is written.
type Syncer interface {
	Pull(ctx context.Context) error
	CommitAndPush(ctx context.Context, paths []string, message string) error
}

// Repo drives a local git working copy.
type Repo struct {
	Path   string
	Remote string
	Branch string
	Name   string // commit author
	Email  string
}

// Pull fast-forwards the working copy to the remote branch head. An
// already-up-to-date copy is not an error.
func (r *Repo) Pull(ctx context.Context) error {
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    r.Remote,
		ReferenceName: plumbing.NewBranchReferenceName(r.Branch),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull %s/%s: %w", r.Remote, r.Branch, err)
	}
	return nil
}

// CommitAndPush stages paths, commits them, and pushes to the remote.
func (r *Repo) CommitAndPush(ctx context.Context, paths []string, message string) error {
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.Name, Email: r.Email, When: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: r.Remote})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s: %w", r.Remote, err)
	}
	return nil
}

// Noop is a Syncer that does nothing. Used for dry runs.
type Noop struct{}

func (Noop) Pull(context.Context) error { return nil }

func (Noop) CommitAndPush(context.Context, []string, string) error { return nil }
