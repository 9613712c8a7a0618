// Package fetcher decides which GitHub API calls to make for a repository
// and adapts the responses into raw events for rule matching.
package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/qiweiii/github-custom-notifier/internal/github"
	"github.com/qiweiii/github-custom-notifier/internal/model"
)

// API is the subset of the GitHub client the fetcher calls.
type API interface {
	ListIssueEvents(ctx context.Context, owner, repo string, perPage int) ([]github.IssueEvent, error)
	ListIssueComments(ctx context.Context, owner, repo string, since time.Time, perPage int) ([]github.IssueComment, error)
	ListIssues(ctx context.Context, owner, repo string, since time.Time, perPage int) ([]github.Issue, error)
}

// Config holds the fetch depth tuning. The defaults are the production
// values; they are fields rather than constants so the request volume can
// be tuned against upstream rate limits.
type Config struct {
	// EventPageSize is the fixed number of issue events fetched per repo.
	// The events endpoint has no `since` cursor, so this page is refetched
	// every cycle and deduplicated downstream.
	EventPageSize int
	// WideStaleness is the watermark age beyond which the wide comment
	// window is used instead of the narrow incremental one.
	WideStaleness  time.Duration
	WideComments   int
	WideIssues     int
	NarrowComments int
	NarrowIssues   int
}

// DefaultConfig returns the production fetch depths.
func DefaultConfig() Config {
	return Config{
		EventPageSize:  40,
		WideStaleness:  2 * time.Hour,
		WideComments:   60,
		WideIssues:     20,
		NarrowComments: 30,
		NarrowIssues:   10,
	}
}

// Fetcher retrieves the raw, unfiltered API records likely to contain
// matchable events for a repository. It is stateless with respect to
// storage.
type Fetcher struct {
	api    API
	origin string
	cfg    Config
}

// New creates a Fetcher. origin is the web origin used to compose issue
// deep links (distinct from the API base URL).
func New(api API, origin string, cfg Config) *Fetcher {
	return &Fetcher{api: api, origin: origin, cfg: cfg}
}

// issueNumberRe extracts the issue number from a comment permalink, e.g.
// https://github.com/octocat/Hello-World/issues/1347#issuecomment-1
var issueNumberRe = regexp.MustCompile(`/issues/(\d+)#issuecomment`)

// FetchRepo runs both retrieval strategies for one repository and returns
// the adapted raw events, unordered. An error means the whole repository
// failed this cycle; the caller isolates it from other repositories.
func (f *Fetcher) FetchRepo(ctx context.Context, rule model.RepoRule, lastFetched, now time.Time) ([]model.RawEvent, error) {
	owner, repo := model.SplitRepoName(rule.RepoName)

	var events []model.RawEvent

	// Comment strategy: only worth the requests when comment patterns are
	// configured. The comments endpoint supports `since`, so a narrow page
	// suffices in steady state; a wide page recovers from downtime without
	// paging indefinitely.
	if len(rule.CommentPatterns) > 0 {
		commentDepth, issueDepth := f.cfg.NarrowComments, f.cfg.NarrowIssues
		since := lastFetched
		if lastFetched.IsZero() || now.Sub(lastFetched) > f.cfg.WideStaleness {
			commentDepth, issueDepth = f.cfg.WideComments, f.cfg.WideIssues
			since = time.Time{}
		}

		comments, err := f.api.ListIssueComments(ctx, owner, repo, since, commentDepth)
		if err != nil {
			return nil, fmt.Errorf("list issue comments: %w", err)
		}
		for _, c := range comments {
			ev, ok := adaptComment(rule.RepoName, c)
			if !ok {
				// Permalink did not yield an issue number; drop the
				// single event rather than fail the repository.
				continue
			}
			events = append(events, ev)
		}

		// Fresh issue bodies are matched as pseudo-comments so a phrase in
		// the issue description is caught even though it is not a comment.
		issues, err := f.api.ListIssues(ctx, owner, repo, since, issueDepth)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, is := range issues {
			events = append(events, adaptIssue(rule.RepoName, is))
		}
	}

	// Label/mention strategy, run unconditionally every cycle.
	issueEvents, err := f.api.ListIssueEvents(ctx, owner, repo, f.cfg.EventPageSize)
	if err != nil {
		return nil, fmt.Errorf("list issue events: %w", err)
	}
	for _, ie := range issueEvents {
		ev, ok := f.adaptIssueEvent(rule.RepoName, ie)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func adaptComment(repoName string, c github.IssueComment) (model.RawEvent, bool) {
	m := issueNumberRe.FindStringSubmatch(c.HTMLURL)
	if m == nil {
		return model.RawEvent{}, false
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return model.RawEvent{}, false
	}
	return model.RawEvent{
		Kind:        model.EventCustomCommented,
		ID:          c.ID,
		RepoName:    repoName,
		Actor:       c.User.Login,
		Body:        c.Body,
		Link:        c.HTMLURL,
		IssueNumber: number,
		CreatedAt:   c.UpdatedAt,
	}, true
}

func adaptIssue(repoName string, is github.Issue) model.RawEvent {
	return model.RawEvent{
		Kind:        model.EventCustomCommented,
		ID:          is.ID,
		RepoName:    repoName,
		Actor:       is.User.Login,
		Body:        is.Body,
		Link:        is.HTMLURL,
		IssueNumber: is.Number,
		IssueTitle:  is.Title,
		CreatedAt:   is.UpdatedAt,
	}
}

func (f *Fetcher) adaptIssueEvent(repoName string, ie github.IssueEvent) (model.RawEvent, bool) {
	var kind model.EventKind
	switch ie.Event {
	case "labeled":
		kind = model.EventLabeled
	case "mentioned":
		kind = model.EventMentioned
	default:
		return model.RawEvent{}, false
	}
	return model.RawEvent{
		Kind:        kind,
		ID:          ie.ID,
		RepoName:    repoName,
		Actor:       ie.Actor.Login,
		Label:       ie.Label.Name,
		Link:        fmt.Sprintf("%s/%s/issues/%d", f.origin, repoName, ie.Issue.Number),
		IssueNumber: ie.Issue.Number,
		IssueTitle:  ie.Issue.Title,
		CreatedAt:   ie.CreatedAt,
	}, true
}
