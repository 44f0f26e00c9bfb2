package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// seedOrigin builds a bare origin repository containing one post.
func seedOrigin(t *testing.T) string {
	t.Helper()

	seed := t.TempDir()
	repo, err := git.PlainInit(seed, false)
	if err != nil {
		t.Fatalf("init seed repo: %v", err)
	}
	writeFile(t, seed, "_posts/2020-01-01-0.md", "first post\n")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("seed worktree: %v", err)
	}
	if _, err := wt.Add("_posts"); err != nil {
		t.Fatalf("seed add: %v", err)
	}
	_, err = wt.Commit("Add post 0", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	bare := filepath.Join(t.TempDir(), "origin.git")
	if _, err := git.PlainClone(bare, true, &git.CloneOptions{URL: seed}); err != nil {
		t.Fatalf("clone bare origin: %v", err)
	}
	return bare
}

func TestPullAndCommitAndPush(t *testing.T) {
	origin := seedOrigin(t)

	work := t.TempDir()
	if _, err := git.PlainClone(work, false, &git.CloneOptions{URL: origin}); err != nil {
		t.Fatalf("clone working copy: %v", err)
	}

	r := &Repo{
		Path:   work,
		Remote: "origin",
		Branch: "master",
		Name:   "photopost",
		Email:  "photopost@example.com",
	}
	ctx := context.Background()

	// An up-to-date clone pulls cleanly.
	if err := r.Pull(ctx); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	writeFile(t, work, "_posts/2020-01-02-1.md", "second post\n")
	if err := r.CommitAndPush(ctx, []string{"_posts"}, "Add post 1"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}

	// The bare origin must have received the commit.
	originRepo, err := git.PlainOpen(origin)
	if err != nil {
		t.Fatalf("open origin: %v", err)
	}
	ref, err := originRepo.Head()
	if err != nil {
		t.Fatalf("origin head: %v", err)
	}
	commit, err := originRepo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("origin commit: %v", err)
	}
	if commit.Message != "Add post 1" {
		t.Errorf("origin head message = %q, want %q", commit.Message, "Add post 1")
	}
}

func TestPullPicksUpRemoteChanges(t *testing.T) {
	origin := seedOrigin(t)
	ctx := context.Background()

	work := t.TempDir()
	if _, err := git.PlainClone(work, false, &git.CloneOptions{URL: origin}); err != nil {
		t.Fatalf("clone working copy: %v", err)
	}

	// Push a new post from a second clone.
	other := t.TempDir()
	if _, err := git.PlainClone(other, false, &git.CloneOptions{URL: origin}); err != nil {
		t.Fatalf("clone second copy: %v", err)
	}
	writeFile(t, other, "_posts/2020-01-03-1.md", "out of band\n")
	otherRepo := &Repo{Path: other, Remote: "origin", Branch: "master", Name: "t", Email: "t@example.com"}
	if err := otherRepo.CommitAndPush(ctx, []string{"_posts"}, "Add post 1"); err != nil {
		t.Fatalf("push from second copy: %v", err)
	}

	r := &Repo{Path: work, Remote: "origin", Branch: "master", Name: "t", Email: "t@example.com"}
	if err := r.Pull(ctx); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if _, err := os.Stat(filepath.Join(work, "_posts", "2020-01-03-1.md")); err != nil {
		t.Errorf("pulled working copy missing new post: %v", err)
	}
}

func TestPullOpenError(t *testing.T) {
	r := &Repo{Path: t.TempDir(), Remote: "origin", Branch: "master"}
	if err := r.Pull(context.Background()); err == nil {
		t.Fatalf("expected error pulling a directory that is not a repository")
	}
}
