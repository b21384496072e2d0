package domain

import "fmt"

// Supported repository hosts.
const (
	HostGitHub = "github.com"
	HostLocal  = "local"
)

// RepoRef points at a repository on a hosting provider.
// Ref is a branch, tag or commit; empty means the default branch.
type RepoRef struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Ref   string `json:"ref,omitempty"`
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepoRef) String() string {
	if r.Ref != "" {
		return fmt.Sprintf("%s/%s/%s@%s", r.Host, r.Owner, r.Name, r.Ref)
	}
	return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Name)
}

// FileEntry describes a file present in a repository listing.
type FileEntry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Language string `json:"language"`
}

// FetchedFile is a FileEntry whose content has been retrieved.
type FetchedFile struct {
	FileEntry
	Content string `json:"-"`
}
