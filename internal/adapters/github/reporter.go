// Package github posts run conclusions to the GitHub commit status API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/oauth2"
)

var _ ports.StatusReporter = (*Reporter)(nil)

// Reporter implements ports.StatusReporter against the commit status API.
type Reporter struct {
	client *github.Client
	logger ports.Logger
}

// NewReporter creates a Reporter authenticated with token. An empty token
// yields an unauthenticated client; posting statuses will then fail with the
// API's permission error.
func NewReporter(token string, logger ports.Logger) *Reporter {
	transport := http.DefaultTransport
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	return NewReporterWithClient(github.NewClient(&http.Client{Transport: transport}), logger)
}

// NewReporterWithClient creates a Reporter around a prepared API client.
func NewReporterWithClient(client *github.Client, logger ports.Logger) *Reporter {
	return &Reporter{
		client: client,
		logger: logger,
	}
}

// Report posts the run result as a commit status for the event's commit. The
// status context is "gantry/<workflow>".
func (r *Reporter) Report(ctx context.Context, ev domain.PushEvent, result *domain.RunResult) error {
	owner, repo, err := ownerRepo(ev.RemoteURL)
	if err != nil {
		return err
	}

	state, description := describeConclusion(result)

	status := &github.RepoStatus{
		State:       github.Ptr(state),
		Context:     github.Ptr("gantry/" + result.Workflow),
		Description: github.Ptr(description),
	}
	if _, _, err := r.client.Repositories.CreateStatus(ctx, owner, repo, ev.SHA, status); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create commit status"), "repo", owner+"/"+repo)
	}

	r.logger.Info(fmt.Sprintf("reported %s for %s/%s@%s", state, owner, repo, ev.ShortSHA()))
	return nil
}

func describeConclusion(result *domain.RunResult) (state, description string) {
	elapsed := result.Duration.Round(time.Second)
	switch result.Conclusion {
	case domain.StatusSucceeded:
		return "success", fmt.Sprintf("Successful in %s", elapsed)
	case domain.StatusFailed:
		return "failure", fmt.Sprintf("Failing after %s", elapsed)
	default:
		return "error", fmt.Sprintf("Finished %s after %s", result.Conclusion, elapsed)
	}
}

// ownerRepo extracts the owner/repo pair from an origin remote URL. Both the
// scp-like ssh form and https URLs are accepted.
func ownerRepo(remote string) (owner, repo string, err error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", "", zerr.New("repository has no origin remote")
	}

	var hostPath string
	switch {
	case strings.HasPrefix(remote, "git@"):
		// git@github.com:owner/repo.git
		hostPath = strings.Replace(strings.TrimPrefix(remote, "git@"), ":", "/", 1)
	case strings.Contains(remote, "://"):
		u, parseErr := url.Parse(remote)
		if parseErr != nil {
			return "", "", zerr.With(zerr.Wrap(parseErr, "invalid remote url"), "remote", remote)
		}
		hostPath = u.Hostname() + u.Path
	default:
		hostPath = remote
	}

	parts := strings.Split(strings.Trim(hostPath, "/"), "/")
	if len(parts) < 3 {
		return "", "", zerr.With(zerr.New("remote url does not name owner/repo"), "remote", remote)
	}

	host := strings.ToLower(parts[0])
	if host != "github.com" && host != "www.github.com" {
		return "", "", zerr.With(zerr.New("remote host is not github.com"), "remote", remote)
	}

	owner = parts[1]
	repo = strings.TrimSuffix(parts[2], ".git")
	if owner == "" || repo == "" {
		return "", "", zerr.With(zerr.New("remote url does not name owner/repo"), "remote", remote)
	}
	return owner, repo, nil
}
