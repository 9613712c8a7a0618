package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/qiweiii/github-custom-notifier/internal/model"
	"github.com/qiweiii/github-custom-notifier/internal/storage"
)

const (
	ruleKindLabeled   = model.RuleLabeled
	ruleKindMentioned = model.RuleMentioned
	ruleKindCommented = model.RuleCommented
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to GitHub Custom Notifier!

Watch repositories and get notified on labels, mentions, and comment phrases.

Quick start:
1. /watch <owner/repo> — watch a repository
2. /label <owner/repo> <label> — notify when that label is applied
3. /mention <owner/repo> <user> — notify when that user is mentioned
4. /comment <owner/repo> <phrase> — notify on matching comments (* = any)

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Repository management:
/watch <owner/repo> — watch a repository
/unwatch <owner/repo> — stop watching
/repos — show watched repositories
/rules <owner/repo> — show rules for a repository
/findrepo <text> — search GitHub repositories
/finduser <text> — search GitHub users

Rule management:
/label <owner/repo> <label> — notify when the label is applied
/mention <owner/repo> <user> — notify when the user is mentioned
/comment <owner/repo> <phrase> — notify on comments containing the phrase (* matches any comment)
/unlabel <owner/repo> <label> — remove a label rule
/unmention <owner/repo> <user> — remove a mention rule
/uncomment <owner/repo> <phrase> — remove a comment rule

Notifications:
/unread — list unread notifications
/read <id> — mark one as read
/readall — mark all as read
/poll — poll now`)
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) {
	repoName, err := ParseRepoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /watch <owner/repo>")
		return
	}

	owner, repo := model.SplitRepoName(repoName)
	if _, err := b.gh.GetRepo(ctx, owner, repo); err != nil {
		b.reply(chatID, fmt.Sprintf("Cannot find repository %q: %v", repoName, err))
		return
	}

	rule := &model.RepoRule{RepoName: repoName}
	if err := b.store.CreateRepoRule(ctx, rule); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to watch %q: %v", repoName, err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Watching %s.\nNo rules yet. Use /label, /mention, /comment to add rules.", repoName))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, args string) {
	repoName, err := ParseRepoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unwatch <owner/repo>")
		return
	}

	if err := b.store.DeleteRepoRule(ctx, repoName); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			b.reply(chatID, fmt.Sprintf("Repository %q is not watched.", repoName))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Stopped watching %s. Its notifications were removed.", repoName))
}

func (b *Bot) handleRepos(ctx context.Context, chatID int64) {
	rules, err := b.store.ListRepoRules(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatRepoList(rules))
}

func (b *Bot) handleRules(ctx context.Context, chatID int64, args string) {
	repoName, err := ParseRepoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rules <owner/repo>")
		return
	}

	rule, err := b.store.GetRepoRule(ctx, repoName)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Repository %q is not watched.", repoName))
		return
	}
	b.reply(chatID, FormatRuleList(rule))
}

func (b *Bot) handleAddRule(ctx context.Context, chatID int64, args string, kind model.RuleKind) {
	repoName, value, err := ParseRuleArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if err := b.store.AddRuleValue(ctx, repoName, kind, value); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			b.reply(chatID, fmt.Sprintf("Repository %q is not watched. Use /watch first.", repoName))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Rule added to %s: %s %q", repoName, ruleKindLabel(kind), value))
}

func (b *Bot) handleRemoveRule(ctx context.Context, chatID int64, args string, kind model.RuleKind) {
	repoName, value, err := ParseRuleArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if err := b.store.RemoveRuleValue(ctx, repoName, kind, value); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Rule removed from %s: %s %q", repoName, ruleKindLabel(kind), value))
}

func (b *Bot) handleUnread(ctx context.Context, chatID int64) {
	items, err := b.store.ListAllNotifyItems(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatUnreadList(items))
}

func (b *Bot) handleRead(ctx context.Context, chatID int64, args string) {
	id, err := ParseItemIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /read <notification-id>")
		return
	}

	if err := b.store.RemoveNotifyItem(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Marked %s as read.", id))
}

func (b *Bot) handleReadAll(ctx context.Context, chatID int64) {
	if err := b.store.RemoveAllNotifyItems(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "All notifications marked as read.")
}

func (b *Bot) handlePoll(ctx context.Context, chatID int64) {
	if b.poller == nil {
		b.reply(chatID, "Polling is not running.")
		return
	}
	b.reply(chatID, "Polling now...")
	b.poller.RequestPoll(ctx)
	if n := b.UnreadCount(); n >= 0 {
		b.reply(chatID, fmt.Sprintf("Poll finished. %d unread.", n))
	}
}

func (b *Bot) handleFindRepo(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /findrepo <text>")
		return
	}
	res, err := b.gh.SearchRepos(ctx, args, 10)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Search failed: %v", err))
		return
	}
	b.reply(chatID, FormatRepoSearch(args, res))
}

func (b *Bot) handleFindUser(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /finduser <text>")
		return
	}
	res, err := b.gh.SearchUsers(ctx, args, 10)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Search failed: %v", err))
		return
	}
	b.reply(chatID, FormatUserSearch(args, res))
}
