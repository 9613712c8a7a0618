// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind identifies the rule list a single rule value belongs to.
type RuleKind string

// Supported rule kinds.
const (
	RuleLabeled   RuleKind = "labeled"
	RuleMentioned RuleKind = "mentioned"
	RuleCommented RuleKind = "commented"
)

// CommentMatchAny is the comment pattern sentinel that matches any
// non-empty comment body.
const CommentMatchAny = "*"

// RepoRule holds the notification rules configured for one repository.
// The rule slices preserve insertion order; matching reports the first
// entry that hits.
type RepoRule struct {
	RepoName        string
	Labeled         []string
	Mentioned       []string
	CommentPatterns []string
	CreatedAt       time.Time
}

// ValidateRepoName checks that a repository name has the `owner/repo`
// form: exactly one slash with non-empty halves.
func ValidateRepoName(fullName string) error {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return nil
}

// SplitRepoName splits an already-validated `owner/repo` name.
func SplitRepoName(fullName string) (owner, repo string) {
	owner, repo, _ = strings.Cut(fullName, "/")
	return owner, repo
}

// EventKind discriminates the three raw event shapes.
type EventKind string

// Supported event kinds.
const (
	EventLabeled         EventKind = "labeled"
	EventMentioned       EventKind = "mentioned"
	EventCustomCommented EventKind = "custom-commented"
)

// RawEvent is one occurrence fetched from the GitHub API, unified across
// the issue-events and issue-comments endpoints. Raw events live for a
// single poll cycle and are never persisted.
type RawEvent struct {
	Kind     EventKind
	ID       int64
	RepoName string
	// Actor is the label actor, the mentioning user, or the comment author.
	Actor string
	// Label is set for labeled events only.
	Label string
	// Body is set for custom-commented events only.
	Body        string
	Link        string
	IssueNumber int
	IssueTitle  string
	// CreatedAt is the event creation time; comment events use the
	// comment's updated time.
	CreatedAt time.Time
}

// IssueRef identifies the issue a notification points at.
type IssueRef struct {
	Number int
	Title  string
}

// NotifyItem is a durable, user-facing notification awaiting acknowledgment.
type NotifyItem struct {
	// ID is namespaced by source: "issueevent-<id>" or "issuecomment-<id>".
	ID        string
	EventType EventKind
	Reason    string
	// CreatedAt is epoch milliseconds taken from the originating event,
	// not from poll time.
	CreatedAt int64
	RepoName  string
	Link      string
	Issue     IssueRef
}

// DismissedEntry records a recently acknowledged notification id. Entries
// older than the 24h window are pruned each cycle.
type DismissedEntry struct {
	ItemID      string
	DismissedAt time.Time
}
