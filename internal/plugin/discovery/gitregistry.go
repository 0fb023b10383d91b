package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// GitRegistry discovers plugins published in a git repository: the
// repository is cloned (or updated) into a local cache directory and its
// manifests are scanned. Registry descriptors carry the entry point kind.
// It implements plugin.Discoverer; the configured paths are ignored because
// the registry is its own source.
type GitRegistry struct {
	url      string
	branch   string
	cacheDir string
	scanner  *Scanner
}

// NewGitRegistry creates a registry client. branch may be empty to use the
// remote default.
func NewGitRegistry(url, branch, cacheDir string, table *Table) *GitRegistry {
	return &GitRegistry{
		url:      url,
		branch:   branch,
		cacheDir: cacheDir,
		scanner:  &Scanner{table: table, kind: plugin.KindEntryPoint},
	}
}

// Discover syncs the registry repository and scans it for manifests.
func (r *GitRegistry) Discover(ctx context.Context, _ []string) ([]plugin.Descriptor, error) {
	dir, err := r.sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncing plugin registry %s: %w", r.url, err)
	}
	return r.scanner.Discover(ctx, []string{dir})
}

// sync clones the registry on first use and pulls on subsequent calls.
func (r *GitRegistry) sync(ctx context.Context) (string, error) {
	repoPath := filepath.Join(r.cacheDir, "registry")

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		return repoPath, r.update(ctx, repoPath)
	}

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating registry cache dir: %w", err)
	}

	cloneOptions := &git.CloneOptions{URL: r.url}
	if r.branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + r.branch)
		cloneOptions.SingleBranch = true
	}

	repository, err := git.PlainCloneContext(ctx, repoPath, false, cloneOptions)
	if err != nil {
		return "", fmt.Errorf("failed to clone registry %s: %w", r.url, err)
	}

	if ref, err := repository.Head(); err == nil {
		slog.Info("plugin registry cloned",
			"url", r.url,
			"commit", ref.Hash().String()[:8],
			"path", repoPath)
	}
	return repoPath, nil
}

func (r *GitRegistry) update(ctx context.Context, repoPath string) error {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open registry cache: %w", err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get registry worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to pull registry %s: %w", r.url, err)
	}

	if err == git.NoErrAlreadyUpToDate {
		slog.Debug("plugin registry already up to date", "url", r.url)
	} else if ref, headErr := repository.Head(); headErr == nil {
		slog.Info("plugin registry updated",
			"url", r.url,
			"commit", ref.Hash().String()[:8])
	}
	return nil
}
