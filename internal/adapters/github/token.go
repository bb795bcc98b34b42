package github

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// ghTimeout bounds the gh invocation so a broken credential helper doesn't
// hang runs.
const ghTimeout = 5 * time.Second

// ResolveToken resolves a GitHub access token for status reporting.
//
// Precedence:
//  1. GITHUB_TOKEN env var
//  2. GitHub CLI: `gh auth token -h github.com`
//
// An empty token with a nil error means no credentials are available.
func ResolveToken(ctx context.Context) (string, error) {
	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return env, nil
	}
	return tokenFromCLI(ctx)
}

func tokenFromCLI(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", nil
	}

	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, ghTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", "github.com")
	out, err := cmd.Output()
	if err != nil {
		if cmdCtx.Err() != nil {
			return "", cmdCtx.Err()
		}
		// gh is present but not logged in; treat as "no token". The raw
		// output is not surfaced because it can carry account context.
		return "", nil
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", nil
	}
	if strings.ContainsAny(token, " \t\n\r") {
		return "", zerr.New("invalid token returned by gh")
	}
	return token, nil
}
