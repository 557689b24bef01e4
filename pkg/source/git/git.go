// Package git checks out source-control dependencies with go-git.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/matzehuels/nary/pkg/errors"
)

// Cloner clones repositories into package directories.
type Cloner struct {
	// KeepGitDir leaves the .git directory in place after checkout.
	KeepGitDir bool
	Logger     *log.Logger
}

// NewCloner returns a Cloner that logs to logger (log.Default() when nil).
func NewCloner(logger *log.Logger) *Cloner {
	if logger == nil {
		logger = log.Default()
	}
	return &Cloner{Logger: logger}
}

// Clone clones repository into dest and checks out ref, returning the
// checked-out commit hash. An empty ref keeps the default branch.
//
// dest must not exist or be empty. Any failure, including a ref that names
// no branch, tag or commit, is a SOURCE_CHECKOUT error and leaves dest
// removed.
func (c *Cloner) Clone(ctx context.Context, repository, ref, dest string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeSourceCheckout, err, "prepare %s", dest)
	}
	c.logger().Debug("cloning", "repo", repository, "ref", ref, "dest", dest)

	repo, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{URL: repository})
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", errors.Wrap(errors.ErrCodeSourceCheckout, err, "clone %s", repository)
	}

	commit, err := checkout(repo, ref)
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", errors.Wrap(errors.ErrCodeSourceCheckout, err, "checkout %s#%s", repository, ref)
	}

	if !c.KeepGitDir {
		if err := os.RemoveAll(filepath.Join(dest, ".git")); err != nil {
			return "", errors.Wrap(errors.ErrCodeSourceCheckout, err, "clean %s", dest)
		}
	}
	return commit, nil
}

func (c *Cloner) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func checkout(repo *gogit.Repository, ref string) (string, error) {
	if ref == "" {
		head, err := repo.Head()
		if err != nil {
			return "", fmt.Errorf("resolve HEAD: %w", err)
		}
		return head.Hash().String(), nil
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", err
	}
	return hash.String(), nil
}

// resolveRef tries ref as a remote branch, a tag, then a full or
// abbreviated commit hash.
func resolveRef(repo *gogit.Repository, ref string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		r, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		// Annotated tags point at a tag object.
		if tag, err := repo.TagObject(r.Hash()); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				return plumbing.ZeroHash, err
			}
			return commit.Hash, nil
		}
		return r.Hash(), nil
	}

	h, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("ref %q is not a branch, tag or commit", ref)
	}
	if _, err := repo.CommitObject(*h); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("ref %q is not a branch, tag or commit", ref)
	}
	return *h, nil
}
