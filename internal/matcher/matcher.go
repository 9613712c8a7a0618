// Package matcher implements the event-to-rule matching engine.
package matcher

import (
	"fmt"
	"strings"

	"github.com/qiweiii/github-custom-notifier/internal/model"
)

const excerptLen = 40

// Match classifies a raw event against a repository's rules and returns
// the notification it produces, or nil when nothing matches. It is a pure
// function of the event and the rule; the first matching rule entry in
// insertion order wins and matching stops there. An empty rule list for
// the event's kind means "not interested" and short-circuits without
// inspecting the event body.
func Match(ev model.RawEvent, rule model.RepoRule) *model.NotifyItem {
	switch ev.Kind {
	case model.EventLabeled:
		return matchLabeled(ev, rule.Labeled)
	case model.EventMentioned:
		return matchMentioned(ev, rule.Mentioned)
	case model.EventCustomCommented:
		return matchCommented(ev, rule.CommentPatterns)
	}
	return nil
}

func matchLabeled(ev model.RawEvent, labels []string) *model.NotifyItem {
	if len(labels) == 0 {
		return nil
	}
	var matched string
	for _, l := range labels {
		if strings.EqualFold(ev.Label, l) {
			matched = l
			break
		}
	}
	if matched == "" {
		return nil
	}

	reason := fmt.Sprintf("Added label: %q", matched)
	if ev.Actor != "" {
		reason = fmt.Sprintf("@%s added label: %q", ev.Actor, matched)
	}
	return newItem(ev, fmt.Sprintf("issueevent-%d", ev.ID), reason)
}

func matchMentioned(ev model.RawEvent, users []string) *model.NotifyItem {
	if len(users) == 0 {
		return nil
	}
	var matched string
	for _, u := range users {
		// Logins are matched exactly, unlike labels.
		if ev.Actor == u {
			matched = u
			break
		}
	}
	if matched == "" {
		return nil
	}

	reason := fmt.Sprintf("@%s was mentioned in the issue", matched)
	return newItem(ev, fmt.Sprintf("issueevent-%d", ev.ID), reason)
}

func matchCommented(ev model.RawEvent, patterns []string) *model.NotifyItem {
	if len(patterns) == 0 {
		return nil
	}

	var matched string
	if containsWildcard(patterns) {
		if ev.Body == "" {
			return nil
		}
		matched = ev.Body
	} else {
		for _, p := range patterns {
			if strings.Contains(ev.Body, p) {
				matched = p
				break
			}
		}
		if matched == "" {
			return nil
		}
	}

	reason := fmt.Sprintf("@%s commented: %q", ev.Actor, clipExcerpt(matched))
	return newItem(ev, fmt.Sprintf("issuecomment-%d", ev.ID), reason)
}

func containsWildcard(patterns []string) bool {
	for _, p := range patterns {
		if p == model.CommentMatchAny {
			return true
		}
	}
	return false
}

func clipExcerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLen {
		return s
	}
	return string(runes[:excerptLen]) + "..."
}

func newItem(ev model.RawEvent, id, reason string) *model.NotifyItem {
	return &model.NotifyItem{
		ID:        id,
		EventType: ev.Kind,
		Reason:    reason,
		CreatedAt: ev.CreatedAt.UnixMilli(),
		RepoName:  ev.RepoName,
		Link:      ev.Link,
		Issue: model.IssueRef{
			Number: ev.IssueNumber,
			Title:  ev.IssueTitle,
		},
	}
}
