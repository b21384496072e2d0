package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// GitHubFetcher implements port.SourceFetcher against the GitHub REST API.
type GitHubFetcher struct {
	baseURL *url.URL
	limiter *rate.Limiter
}

// NewGitHubFetcher creates a fetcher. apiURL overrides the public API
// endpoint (GitHub Enterprise or tests); rps <= 0 disables throttling.
func NewGitHubFetcher(apiURL string, rps float64) (*GitHubFetcher, error) {
	f := &GitHubFetcher{limiter: rate.NewLimiter(rate.Inf, 1)}
	if rps > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		f.baseURL = u
	}
	return f, nil
}

func (f *GitHubFetcher) client(ctx context.Context, credential string) (*github.Client, error) {
	if credential == "" {
		return nil, fmt.Errorf("github: missing credential: %w", port.ErrUnauthorized)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential})
	c := github.NewClient(oauth2.NewClient(ctx, ts))
	if f.baseURL != nil {
		c.BaseURL = f.baseURL
	}
	return c, nil
}

// ListFiles returns every blob of the repository tree at ref.Ref, or at the
// default branch when no ref is set.
func (f *GitHubFetcher) ListFiles(ctx context.Context, ref domain.RepoRef, credential string) ([]domain.FileEntry, error) {
	c, err := f.client(ctx, credential)
	if err != nil {
		return nil, err
	}

	treeRef := ref.Ref
	if treeRef == "" {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		repo, resp, err := c.Repositories.Get(ctx, ref.Owner, ref.Name)
		if err != nil {
			return nil, fmt.Errorf("get repository %s: %w", ref.FullName(), classify(resp, err))
		}
		treeRef = repo.GetDefaultBranch()
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, resp, err := c.Git.GetTree(ctx, ref.Owner, ref.Name, treeRef, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s@%s: %w", ref.FullName(), treeRef, classify(resp, err))
	}

	files := make([]domain.FileEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		files = append(files, domain.FileEntry{
			Path:     e.GetPath(),
			Size:     int64(e.GetSize()),
			Language: domain.DetectLanguage(e.GetPath()),
		})
	}
	if tree.GetTruncated() {
		slog.Warn("github tree listing truncated", "repo", ref.FullName(), "ref", treeRef, "entries", len(tree.Entries))
		return files, fmt.Errorf("get tree %s@%s: %w", ref.FullName(), treeRef, port.ErrListingTruncated)
	}
	return files, nil
}

// FetchFile returns the decoded text of a single file.
func (f *GitHubFetcher) FetchFile(ctx context.Context, ref domain.RepoRef, credential, path string) (string, error) {
	c, err := f.client(ctx, credential)
	if err != nil {
		return "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var opts *github.RepositoryContentGetOptions
	if ref.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref.Ref}
	}
	file, _, resp, err := c.Repositories.GetContents(ctx, ref.Owner, ref.Name, path, opts)
	if err != nil {
		return "", fmt.Errorf("get contents %s: %w", path, classify(resp, err))
	}
	if file == nil {
		return "", fmt.Errorf("get contents %s: not a file: %w", path, port.ErrNotFound)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode contents %s: %w", path, err)
	}
	return content, nil
}

// classify maps GitHub API failures onto port sentinel errors.
func classify(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", port.ErrRateLimited, err)
	}
	if resp == nil || resp.Response == nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", port.ErrUnauthorized, err)
	case http.StatusForbidden:
		if resp.Rate.Limit > 0 && resp.Rate.Remaining == 0 {
			return fmt.Errorf("%w: %v", port.ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", port.ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", port.ErrNotFound, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", port.ErrRateLimited, err)
	}
	return err
}
