package source

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// ParseRepoRef accepts https and ssh GitHub URLs, "owner/name" shorthand and
// "local:owner/name" for working copies under the clone base path.
// A trailing "@ref" or "/tree/<ref>" selects a branch, tag or commit.
func ParseRepoRef(raw string) (domain.RepoRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return domain.RepoRef{}, fmt.Errorf("parse repo ref: empty: %w", port.ErrInvalidRepoRef)
	}

	host := domain.HostGitHub
	var rest string

	switch {
	case strings.HasPrefix(s, "local:"):
		host = domain.HostLocal
		rest = strings.TrimPrefix(s, "local:")
	case strings.HasPrefix(s, "git@"):
		// git@github.com:owner/name.git
		hostPart, pathPart, ok := strings.Cut(strings.TrimPrefix(s, "git@"), ":")
		if !ok {
			return domain.RepoRef{}, fmt.Errorf("parse repo ref %q: %w", raw, port.ErrInvalidRepoRef)
		}
		host = strings.ToLower(hostPart)
		rest = pathPart
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil {
			return domain.RepoRef{}, fmt.Errorf("parse repo ref %q: %w", raw, port.ErrInvalidRepoRef)
		}
		host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		rest = strings.Trim(u.Path, "/")
	default:
		rest = s
	}

	var ref string
	if before, after, ok := strings.Cut(rest, "@"); ok {
		rest, ref = before, after
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) >= 4 && parts[2] == "tree" {
		ref = strings.Join(parts[3:], "/")
		parts = parts[:2]
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || !validRef(ref) {
		return domain.RepoRef{}, fmt.Errorf("parse repo ref %q: %w", raw, port.ErrInvalidRepoRef)
	}

	return domain.RepoRef{
		Host:  host,
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
		Ref:   ref,
	}, nil
}

// validRef rejects refs git would read as an option.
func validRef(ref string) bool {
	return !strings.HasPrefix(ref, "-")
}
