package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/qiweiii/github-custom-notifier/internal/github"
	"github.com/qiweiii/github-custom-notifier/internal/model"
)

// FormatNotifyItem formats a notification item as a Telegram message.
func FormatNotifyItem(item model.NotifyItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", item.RepoName)
	b.WriteString(item.Reason)
	if item.Issue.Title != "" {
		fmt.Fprintf(&b, "\n\n%s #%d", item.Issue.Title, item.Issue.Number)
	} else if item.Issue.Number != 0 {
		fmt.Fprintf(&b, "\n\nIssue #%d", item.Issue.Number)
	}
	if item.Link != "" {
		b.WriteString("\n\n")
		b.WriteString(item.Link)
	}
	return b.String()
}

// FormatRepoList formats the watched repositories with their rule counts.
func FormatRepoList(rules []model.RepoRule) string {
	if len(rules) == 0 {
		return "You are not watching any repositories yet. Use /watch <owner/repo> to add one."
	}
	var b strings.Builder
	b.WriteString("Watched repositories:\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "\n%s\n", r.RepoName)
		if len(r.Labeled)+len(r.Mentioned)+len(r.CommentPatterns) == 0 {
			b.WriteString("   no rules\n")
		} else {
			fmt.Fprintf(&b, "   %d label, %d mention, %d comment rules\n",
				len(r.Labeled), len(r.Mentioned), len(r.CommentPatterns))
		}
	}
	return b.String()
}

// FormatRuleList formats the rules of one repository grouped by kind.
func FormatRuleList(rule *model.RepoRule) string {
	if len(rule.Labeled)+len(rule.Mentioned)+len(rule.CommentPatterns) == 0 {
		return fmt.Sprintf("No rules for %s.\nUse /label, /mention, /comment to add rules.", rule.RepoName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rules for %s:\n", rule.RepoName)
	if len(rule.Labeled) > 0 {
		b.WriteString("\nLabels:\n")
		for _, v := range rule.Labeled {
			fmt.Fprintf(&b, "  %s\n", v)
		}
	}
	if len(rule.Mentioned) > 0 {
		b.WriteString("\nMentions:\n")
		for _, v := range rule.Mentioned {
			fmt.Fprintf(&b, "  @%s\n", v)
		}
	}
	if len(rule.CommentPatterns) > 0 {
		b.WriteString("\nComment patterns:\n")
		for _, v := range rule.CommentPatterns {
			if v == model.CommentMatchAny {
				fmt.Fprintf(&b, "  * (any comment)\n")
			} else {
				fmt.Fprintf(&b, "  %q\n", v)
			}
		}
	}
	return b.String()
}

// FormatUnreadList formats the unread notifications, newest first.
func FormatUnreadList(items []model.NotifyItem) string {
	if len(items) == 0 {
		return "No unread notifications."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Unread notifications (%d):\n", len(items))
	for _, it := range items {
		ts := time.UnixMilli(it.CreatedAt).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "\n[%s] %s\n%s\n  id: %s\n", it.RepoName, ts, it.Reason, it.ID)
	}
	b.WriteString("\nUse /read <id> to mark one as read.")
	return b.String()
}

// FormatRepoSearch formats repository search results.
func FormatRepoSearch(query string, res *github.RepoSearchResult) string {
	if len(res.Items) == 0 {
		return fmt.Sprintf("No repositories found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Repositories matching %q:\n", query)
	for _, r := range res.Items {
		fmt.Fprintf(&b, "\n%s\n", r.FullName)
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
	}
	return b.String()
}

// FormatUserSearch formats user search results.
func FormatUserSearch(query string, res *github.UserSearchResult) string {
	if len(res.Items) == 0 {
		return fmt.Sprintf("No users found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Users matching %q:\n", query)
	for _, u := range res.Items {
		fmt.Fprintf(&b, "  @%s\n", u.Login)
	}
	return b.String()
}

func ruleKindLabel(kind model.RuleKind) string {
	switch kind {
	case model.RuleLabeled:
		return "label"
	case model.RuleMentioned:
		return "mention"
	default:
		return "comment pattern"
	}
}
