// Package poller drives the polling loop: it runs full poll cycles across
// all configured repositories and schedules the next cycle.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qiweiii/github-custom-notifier/internal/matcher"
	"github.com/qiweiii/github-custom-notifier/internal/model"
	"github.com/qiweiii/github-custom-notifier/internal/storage"
)

// MinInterval is the smallest allowed poll interval, enforced to respect
// upstream rate limits.
const MinInterval = 2 * time.Minute

// Fetcher retrieves raw events for one repository.
type Fetcher interface {
	FetchRepo(ctx context.Context, rule model.RepoRule, lastFetched, now time.Time) ([]model.RawEvent, error)
}

// Notifier receives the presentation side effects of a completed cycle.
// Calls are fire-and-forget.
type Notifier interface {
	RenderBadgeCount(n int)
	ShowNotification(item model.NotifyItem)
	PlaySound()
}

// Options are the user preferences that gate notification side effects.
type Options struct {
	Interval          time.Duration
	PlaySound         bool
	ShowNotifications bool
}

// Poller orchestrates poll cycles. It keeps no domain state in memory:
// every cycle reloads the watermark and rules from storage, so a restart
// between cycles loses nothing.
type Poller struct {
	store    storage.Storage
	fetcher  Fetcher
	notifier Notifier
	opts     Options
	log      *slog.Logger

	mu      sync.Mutex
	running bool

	timerMu sync.Mutex
	timer   *time.Timer

	now func() time.Time
}

// New creates a Poller. Intervals below MinInterval are raised to it.
func New(store storage.Storage, fetcher Fetcher, notifier Notifier, opts Options, log *slog.Logger) *Poller {
	if opts.Interval < MinInterval {
		opts.Interval = MinInterval
	}
	return &Poller{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Run requests an immediate poll and blocks until ctx is cancelled,
// then stops any pending timer.
func (p *Poller) Run(ctx context.Context) {
	p.RequestPoll(ctx)
	<-ctx.Done()
	p.stopTimer()
}

// RequestPoll runs one poll cycle and schedules the next. Requests while
// a cycle is in flight coalesce to a no-op: the next scheduled cycle
// reloads all state from storage anyway. No error escapes; everything
// recoverable is absorbed and logged.
func (p *Poller) RequestPoll(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Debug("poll already running, request coalesced")
		return
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.runCycle(ctx)
	p.scheduleNext(ctx)
}

// runCycle executes one full cycle: fetch, match, store, notify, advance
// the watermark. Per-repository failures are isolated; a storage failure
// aborts the cycle before the watermark advances so the next cycle
// reprocesses the window.
func (p *Poller) runCycle(ctx context.Context) {
	newUpdatedAt := p.now()

	lastFetched, err := p.store.LastFetched(ctx)
	if err != nil {
		p.log.Error("storage: read last fetched", "error", err)
		return
	}
	rules, err := p.store.ListRepoRules(ctx)
	if err != nil {
		p.log.Error("storage: list repo rules", "error", err)
		return
	}

	p.log.Debug("poll cycle started", "repos", len(rules), "last_fetched", lastFetched)

	for _, rule := range rules {
		if ctx.Err() != nil {
			return
		}
		if err := p.processRepo(ctx, rule, lastFetched, newUpdatedAt); err != nil {
			p.log.Error("storage: save notify items", "repo", rule.RepoName, "error", err)
			return
		}
	}

	if err := p.store.PruneDismissed(ctx, newUpdatedAt.Add(-storage.DismissSuppression)); err != nil {
		p.log.Error("storage: prune dismissed ledger", "error", err)
	}

	p.updateCount(ctx, lastFetched)

	if err := p.store.SetLastFetched(ctx, newUpdatedAt); err != nil {
		p.log.Error("storage: set last fetched", "error", err)
		return
	}
}

// processRepo fetches and matches one repository. A fetch error is that
// repository's failure alone and returns nil; only storage errors
// propagate.
func (p *Poller) processRepo(ctx context.Context, rule model.RepoRule, lastFetched, now time.Time) error {
	events, err := p.fetcher.FetchRepo(ctx, rule, lastFetched, now)
	if err != nil {
		p.log.Error("fetch repo events", "repo", rule.RepoName, "error", err)
		return nil
	}

	saved := 0
	for _, ev := range events {
		// Events already processed in a prior cycle are refetched by the
		// non-incremental events endpoint; drop them before matching.
		if !lastFetched.IsZero() && ev.CreatedAt.Before(lastFetched) {
			continue
		}
		item := matcher.Match(ev, rule)
		if item == nil {
			continue
		}
		if err := p.store.SaveNotifyItem(ctx, item); err != nil {
			return err
		}
		saved++
	}

	if saved > 0 {
		p.log.Info("matched events", "repo", rule.RepoName, "count", saved)
	}
	return nil
}

// updateCount recomputes the unread count and fires the notifier. Sound
// and notification side effects only run when something genuinely new
// arrived since the previous completed cycle.
func (p *Poller) updateCount(ctx context.Context, prevLastFetched time.Time) {
	items, err := p.store.ListAllNotifyItems(ctx)
	if err != nil {
		p.log.Error("storage: list notify items", "error", err)
		return
	}

	prevMs := int64(0)
	if !prevLastFetched.IsZero() {
		prevMs = prevLastFetched.UnixMilli()
	}

	var fresh []model.NotifyItem
	for _, it := range items {
		if it.CreatedAt > prevMs {
			fresh = append(fresh, it)
		}
	}

	p.notifier.RenderBadgeCount(len(items))

	if len(items) == 0 || len(fresh) == 0 {
		return
	}
	if p.opts.PlaySound {
		p.notifier.PlaySound()
	}
	if p.opts.ShowNotifications {
		for _, it := range fresh {
			p.notifier.ShowNotification(it)
		}
	}
}

// scheduleNext arms the timer for the next cycle, replacing any pending
// one so at most a single trigger is outstanding.
func (p *Poller) scheduleNext(ctx context.Context) {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.opts.Interval, func() {
		if ctx.Err() != nil {
			return
		}
		p.RequestPoll(ctx)
	})
	p.log.Info("next poll scheduled", "in", p.opts.Interval)
}

func (p *Poller) stopTimer() {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
