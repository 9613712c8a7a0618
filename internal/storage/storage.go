// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"github.com/qiweiii/github-custom-notifier/internal/model"
)

// Storage is the interface for all persistence operations: the repository
// rule store and the notification store (items, dismissed ledger, poll
// watermark).
type Storage interface {
	CreateRepoRule(ctx context.Context, rule *model.RepoRule) error
	GetRepoRule(ctx context.Context, repoName string) (*model.RepoRule, error)
	ListRepoRules(ctx context.Context) ([]model.RepoRule, error)
	DeleteRepoRule(ctx context.Context, repoName string) error
	AddRuleValue(ctx context.Context, repoName string, kind model.RuleKind, value string) error
	RemoveRuleValue(ctx context.Context, repoName string, kind model.RuleKind, value string) error

	// SaveNotifyItem upserts by item id; a second save with the same id
	// replaces in place. Items whose id sits in the dismissed ledger
	// within the suppression window are silently not re-added.
	SaveNotifyItem(ctx context.Context, item *model.NotifyItem) error
	ListNotifyItems(ctx context.Context, repoName string) ([]model.NotifyItem, error)
	ListAllNotifyItems(ctx context.Context) ([]model.NotifyItem, error)
	// RemoveNotifyItem deletes an item and records it in the dismissed
	// ledger in one transaction.
	RemoveNotifyItem(ctx context.Context, id string) error
	RemoveAllNotifyItems(ctx context.Context) error

	LastFetched(ctx context.Context) (time.Time, error)
	// SetLastFetched advances the poll watermark; it never moves it
	// backwards.
	SetLastFetched(ctx context.Context, t time.Time) error
	PruneDismissed(ctx context.Context, before time.Time) error

	Close() error
}
