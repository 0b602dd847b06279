// Package github fetches the raw evidence the extraction pipeline mines:
// merged pull requests, review threads, repository trees, docs, and commits
// that repaired a broken build.
package github

import (
	"context"
	"errors"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tacit-cli/internal/resilience"
)

// Fetcher defines the GitHub operations the analysis tasks use.
type Fetcher interface {
	ListMergedPRs(ctx context.Context, repo string, max int) ([]PullRequest, error)
	GetPRThread(ctx context.Context, repo string, number int) (*PRThread, error)
	ListCIFixCommits(ctx context.Context, repo string, max int) ([]Commit, error)
	GetFileContent(ctx context.Context, repo, path string) (string, error)
	ListTree(ctx context.Context, repo string) ([]string, error)
}

// PullRequest is the subset of PR metadata the tasks consume.
type PullRequest struct {
	Number   int
	Title    string
	Body     string
	Author   string
	URL      string
	Labels   []string
	MergedAt time.Time
}

// ReviewComment is one inline or top-level review remark.
type ReviewComment struct {
	Author string
	Body   string
	Path   string
	State  string // for reviews: APPROVED, CHANGES_REQUESTED, COMMENTED
	URL    string
}

// PRThread bundles a PR with its full discussion.
type PRThread struct {
	PR       PullRequest
	Comments []ReviewComment
	Reviews  []ReviewComment
}

// Commit is a single commit with its message and changed files.
type Commit struct {
	SHA     string
	Message string
	Author  string
	URL     string
	Files   []string
}

// Client implements Fetcher against the GitHub REST API.
type Client struct {
	gh    *gh.Client
	retry resilience.RetryConfig
}

// NewClient creates a Fetcher. An empty token falls back to anonymous
// access, which works for public repos at a lower rate limit.
func NewClient(token string) *Client {
	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("github", "api_call")
	return &Client{gh: client, retry: retryCfg}
}

// splitRepo parses "owner/name".
func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", eris.Errorf("github: invalid repo %q, want owner/name", repo)
	}
	return owner, name, nil
}

// ListMergedPRs returns up to max merged PRs, most recently updated first.
func (c *Client) ListMergedPRs(ctx context.Context, repo string, max int) ([]PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 10
	}

	var out []PullRequest
	opts := &gh.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 50},
	}
	for len(out) < max {
		var prs []*gh.PullRequest
		var resp *gh.Response
		err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			var apiErr error
			prs, resp, apiErr = c.gh.PullRequests.List(ctx, owner, name, opts)
			return wrapAPIError(apiErr, resp, "list pull requests")
		})
		if err != nil {
			return nil, err
		}
		for _, pr := range prs {
			if pr.GetMergedAt().IsZero() {
				continue
			}
			out = append(out, fromGHPullRequest(pr))
			if len(out) == max {
				break
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetPRThread fetches a PR plus its issue comments, review comments, and
// review verdicts.
func (c *Client) GetPRThread(ctx context.Context, repo string, number int) (*PRThread, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var pr *gh.PullRequest
	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		var resp *gh.Response
		var apiErr error
		pr, resp, apiErr = c.gh.PullRequests.Get(ctx, owner, name, number)
		return wrapAPIError(apiErr, resp, "get pull request")
	})
	if err != nil {
		return nil, err
	}

	thread := &PRThread{PR: fromGHPullRequest(pr)}

	issueComments, _, err := c.gh.Issues.ListComments(ctx, owner, name, number, &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "github: list issue comments for #%d", number)
	}
	for _, ic := range issueComments {
		thread.Comments = append(thread.Comments, ReviewComment{
			Author: ic.GetUser().GetLogin(),
			Body:   ic.GetBody(),
			URL:    ic.GetHTMLURL(),
		})
	}

	reviewComments, _, err := c.gh.PullRequests.ListComments(ctx, owner, name, number, &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "github: list review comments for #%d", number)
	}
	for _, rc := range reviewComments {
		thread.Comments = append(thread.Comments, ReviewComment{
			Author: rc.GetUser().GetLogin(),
			Body:   rc.GetBody(),
			Path:   rc.GetPath(),
			URL:    rc.GetHTMLURL(),
		})
	}

	reviews, _, err := c.gh.PullRequests.ListReviews(ctx, owner, name, number, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, eris.Wrapf(err, "github: list reviews for #%d", number)
	}
	for _, rv := range reviews {
		thread.Reviews = append(thread.Reviews, ReviewComment{
			Author: rv.GetUser().GetLogin(),
			Body:   rv.GetBody(),
			State:  rv.GetState(),
			URL:    rv.GetHTMLURL(),
		})
	}

	return thread, nil
}

// ciFixPatterns mark commit messages that repaired a failing pipeline.
var ciFixPatterns = []string{
	"fix ci",
	"fix the ci",
	"fix build",
	"fix the build",
	"fix test",
	"fix tests",
	"fix failing",
	"fix lint",
	"fix pipeline",
	"green ci",
	"unbreak",
	"repair ci",
}

// IsCIFixMessage reports whether a commit message looks like a CI repair.
func IsCIFixMessage(message string) bool {
	subject := strings.ToLower(strings.SplitN(message, "\n", 2)[0])
	for _, p := range ciFixPatterns {
		if strings.Contains(subject, p) {
			return true
		}
	}
	return false
}

// ListCIFixCommits scans recent commits for CI repairs and returns up to max
// of them with their changed files.
func (c *Client) ListCIFixCommits(ctx context.Context, repo string, max int) ([]Commit, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 10
	}

	var commits []*gh.RepositoryCommit
	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		var resp *gh.Response
		var apiErr error
		commits, resp, apiErr = c.gh.Repositories.ListCommits(ctx, owner, name, &gh.CommitsListOptions{
			ListOptions: gh.ListOptions{PerPage: 100},
		})
		return wrapAPIError(apiErr, resp, "list commits")
	})
	if err != nil {
		return nil, err
	}

	var out []Commit
	for _, rc := range commits {
		msg := rc.GetCommit().GetMessage()
		if !IsCIFixMessage(msg) {
			continue
		}

		full, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, rc.GetSHA(), nil)
		if err != nil {
			return nil, eris.Wrapf(err, "github: get commit %s", rc.GetSHA())
		}
		commit := Commit{
			SHA:     rc.GetSHA(),
			Message: msg,
			Author:  rc.GetCommit().GetAuthor().GetName(),
			URL:     rc.GetHTMLURL(),
		}
		for _, f := range full.Files {
			commit.Files = append(commit.Files, f.GetFilename())
		}
		out = append(out, commit)
		if len(out) == max {
			break
		}
	}
	return out, nil
}

// GetFileContent fetches one file's decoded content from the default branch.
func (c *Client) GetFileContent(ctx context.Context, repo, path string) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return "", wrapAPIError(err, resp, "get contents "+path)
	}
	if file == nil {
		return "", eris.Errorf("github: %s is not a file", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", eris.Wrapf(err, "github: decode %s", path)
	}
	return content, nil
}

// ListTree returns all blob paths in the repo's default branch.
func (c *Client) ListTree(ctx context.Context, repo string) ([]string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	repoInfo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, eris.Wrapf(err, "github: get repo %s", repo)
	}

	tree, resp, err := c.gh.Git.GetTree(ctx, owner, name, repoInfo.GetDefaultBranch(), true)
	if err != nil {
		return nil, wrapAPIError(err, resp, "get tree")
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

func fromGHPullRequest(pr *gh.PullRequest) PullRequest {
	out := PullRequest{
		Number:   pr.GetNumber(),
		Title:    pr.GetTitle(),
		Body:     pr.GetBody(),
		Author:   pr.GetUser().GetLogin(),
		URL:      pr.GetHTMLURL(),
		MergedAt: pr.GetMergedAt().Time,
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}

// wrapAPIError converts retryable GitHub responses into transient errors so
// the retry layer backs off on rate limits and server hiccups.
func wrapAPIError(err error, resp *gh.Response, op string) error {
	if err == nil {
		return nil
	}
	wrapped := eris.Wrap(err, "github: "+op)
	if resp != nil && resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(wrapped, resp.StatusCode)
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return resilience.NewTransientError(wrapped, 429)
	}
	return wrapped
}
