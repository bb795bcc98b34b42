// Package git synthesizes push events from the local repository head and
// materializes checkout steps through the git CLI.
package git

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceControl = (*Client)(nil)

// Client implements ports.SourceControl using the git CLI.
type Client struct {
	logger ports.Logger
}

// NewClient creates a new git client.
func NewClient(logger ports.Logger) *Client {
	return &Client{
		logger: logger,
	}
}

// DescribeHead synthesizes a push event from the repository head. The ref is
// the checked-out branch, or the exactly matching tag on a detached head.
func (c *Client) DescribeHead(ctx context.Context, root string) (domain.PushEvent, error) {
	if _, err := c.run(ctx, root, "rev-parse", "--git-dir"); err != nil {
		return domain.PushEvent{}, zerr.With(domain.ErrNotARepository, "root", root)
	}

	sha, err := c.run(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return domain.PushEvent{}, zerr.Wrap(err, "failed to read head commit")
	}

	ref, err := c.run(ctx, root, "symbolic-ref", "-q", "HEAD")
	if err != nil {
		// Detached head. A tag pointing exactly at the commit still gives
		// the event a usable ref.
		if tag, tagErr := c.run(ctx, root, "describe", "--tags", "--exact-match", "HEAD"); tagErr == nil {
			ref = "refs/tags/" + tag
		} else {
			ref = "HEAD"
		}
	}

	actor, _ := c.run(ctx, root, "config", "user.name")
	remote, _ := c.run(ctx, root, "remote", "get-url", "origin")

	at := time.Now()
	if ts, tsErr := c.run(ctx, root, "log", "-1", "--format=%ct"); tsErr == nil {
		if secs, parseErr := strconv.ParseInt(ts, 10, 64); parseErr == nil {
			at = time.Unix(secs, 0)
		}
	}

	return domain.PushEvent{
		Ref:       ref,
		SHA:       sha,
		Actor:     actor,
		RemoteURL: remote,
		At:        at,
	}, nil
}

// Checkout materializes the requested source state. Without a ref the
// current worktree is used in place. A ref checkout detaches; it refuses a
// dirty worktree unless the spec asks for a clean checkout.
func (c *Client) Checkout(ctx context.Context, root string, spec domain.CheckoutSpec) error {
	if _, err := c.run(ctx, root, "rev-parse", "--git-dir"); err != nil {
		return zerr.With(domain.ErrNotARepository, "root", root)
	}

	if spec.Ref != "" {
		if !spec.Clean {
			status, err := c.run(ctx, root, "status", "--porcelain")
			if err != nil {
				return zerr.Wrap(err, "failed to inspect worktree state")
			}
			if status != "" {
				return zerr.With(zerr.New("worktree has local modifications"), "ref", spec.Ref)
			}
		}

		args := []string{"checkout", "--quiet", "--detach"}
		if spec.Clean {
			args = append(args, "--force")
		}
		args = append(args, spec.Ref)
		if _, err := c.run(ctx, root, args...); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to checkout ref"), "ref", spec.Ref)
		}
	}

	if spec.LFS {
		if _, err := exec.LookPath("git-lfs"); err != nil {
			return zerr.Wrap(err, "git-lfs is required for lfs checkout")
		}
		if _, err := c.run(ctx, root, "lfs", "pull"); err != nil {
			return zerr.Wrap(err, "failed to pull lfs objects")
		}
	}

	return nil
}

// run executes one git command against root and returns trimmed stdout.
func (c *Client) run(ctx context.Context, root string, args ...string) (string, error) {
	c.logger.Debug("git " + strings.Join(args, " "))

	cmdArgs := append([]string{"-C", root}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...) //nolint:gosec // args are built from validated step fields

	output, err := cmd.Output()
	if err != nil {
		gitErr := zerr.With(zerr.Wrap(err, "git command failed"), "args", strings.Join(args, " "))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			gitErr = zerr.With(gitErr, "stderr", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", gitErr
	}

	return strings.TrimSpace(string(output)), nil
}
