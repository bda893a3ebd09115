// Package event holds the inbound source-control event types the
// rule matching engine consumes.
package event

import "sort"

// Type of source-control event.
type Type string

const (
	TypePush        Type = "push"
	TypePullRequest Type = "pull_request"
	TypeTag         Type = "tag"
)

// Commit is one commit carried by a push event, with the paths it
// touched.
type Commit struct {
	Revision string   `json:"revision"`
	Message  string   `json:"message,omitempty"`
	Author   string   `json:"author,omitempty"`
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

// PullRequest carries the PR-specific fields of a pull_request event.
type PullRequest struct {
	Number       int      `json:"number"`
	Action       string   `json:"action"`
	Labels       []string `json:"labels,omitempty"`
	SourceBranch string   `json:"sourceBranch"`
	TargetBranch string   `json:"targetBranch"`
}

// Event is an inbound source-control event. RepoID is the provider's
// stable identifier; RepoFullName is the owner/name fallback used
// when the id is absent.
type Event struct {
	Type         Type         `json:"type"`
	RepoID       string       `json:"repoId,omitempty"`
	RepoFullName string       `json:"repoFullName"`
	Branch       string       `json:"branch,omitempty"`
	Tag          string       `json:"tag,omitempty"`
	Before       string       `json:"before,omitempty"`
	After        string       `json:"after,omitempty"`
	Commits      []Commit     `json:"commits,omitempty"`
	PullRequest  *PullRequest `json:"pullRequest,omitempty"`
}

// ChangedFiles is the union of added, modified and removed paths
// across every commit in the event, deduplicated and sorted.
func (e Event) ChangedFiles() []string {
	seen := map[string]struct{}{}
	for _, c := range e.Commits {
		for _, group := range [][]string{c.Added, c.Modified, c.Removed} {
			for _, path := range group {
				seen[path] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}
