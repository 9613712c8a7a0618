package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/qiweiii/github-custom-notifier/internal/model"
	"github.com/qiweiii/github-custom-notifier/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// DismissSuppression is how long a dismissed item id keeps suppressing
// re-adds. It covers the refetch overlap of the non-incremental issue
// events endpoint.
const DismissSuppression = 24 * time.Hour

// ErrRuleNotFound is returned when no rule exists for a repository.
var ErrRuleNotFound = errors.New("storage: repo rule not found")

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRepoRule inserts a rule row for a repository along with any rule
// values already present on the struct.
func (s *SQLite) CreateRepoRule(ctx context.Context, rule *model.RepoRule) error {
	if err := model.ValidateRepoName(rule.RepoName); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repo_rules (repo_name, created_at) VALUES (?, ?)`,
		rule.RepoName, now,
	); err != nil {
		return fmt.Errorf("insert repo rule: %w", err)
	}

	for kind, values := range map[model.RuleKind][]string{
		model.RuleLabeled:   rule.Labeled,
		model.RuleMentioned: rule.Mentioned,
		model.RuleCommented: rule.CommentPatterns,
	} {
		for _, v := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rule_values (repo_name, kind, value) VALUES (?, ?, ?)`,
				rule.RepoName, string(kind), v,
			); err != nil {
				return fmt.Errorf("insert rule value: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	rule.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetRepoRule returns the rule for one repository, rule values in
// insertion order.
func (s *SQLite) GetRepoRule(ctx context.Context, repoName string) (*model.RepoRule, error) {
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM repo_rules WHERE repo_name = ?`, repoName,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan repo rule: %w", err)
	}

	rule := &model.RepoRule{RepoName: repoName}
	rule.CreatedAt, _ = time.Parse(timeLayout, created)
	if err := s.loadRuleValues(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRepoRules returns all configured repository rules.
func (s *SQLite) ListRepoRules(ctx context.Context) ([]model.RepoRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_name, created_at FROM repo_rules ORDER BY repo_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query repo rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.RepoRule
	for rows.Next() {
		var r model.RepoRule
		var created string
		if err := rows.Scan(&r.RepoName, &created); err != nil {
			return nil, fmt.Errorf("scan repo rule: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rules {
		if err := s.loadRuleValues(ctx, &rules[i]); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func (s *SQLite) loadRuleValues(ctx context.Context, rule *model.RepoRule) error {
	// id order is insertion order; first-match-wins depends on it.
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, value FROM rule_values WHERE repo_name = ? ORDER BY id`, rule.RepoName,
	)
	if err != nil {
		return fmt.Errorf("query rule values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return fmt.Errorf("scan rule value: %w", err)
		}
		switch model.RuleKind(kind) {
		case model.RuleLabeled:
			rule.Labeled = append(rule.Labeled, value)
		case model.RuleMentioned:
			rule.Mentioned = append(rule.Mentioned, value)
		case model.RuleCommented:
			rule.CommentPatterns = append(rule.CommentPatterns, value)
		}
	}
	return rows.Err()
}

// DeleteRepoRule removes a repository's rule, its rule values, and its
// stored notifications.
func (s *SQLite) DeleteRepoRule(ctx context.Context, repoName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_values WHERE repo_name = ?`, repoName); err != nil {
		return fmt.Errorf("delete rule values: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notify_items WHERE repo_name = ?`, repoName); err != nil {
		return fmt.Errorf("delete notify items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM repo_rules WHERE repo_name = ?`, repoName)
	if err != nil {
		return fmt.Errorf("delete repo rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return tx.Commit()
}

// AddRuleValue appends one value to a repository's rule list of the given
// kind. Duplicates are ignored, keeping the original position.
func (s *SQLite) AddRuleValue(ctx context.Context, repoName string, kind model.RuleKind, value string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repo_rules WHERE repo_name = ?`, repoName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check repo rule: %w", err)
	}
	if exists == 0 {
		return ErrRuleNotFound
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rule_values (repo_name, kind, value) VALUES (?, ?, ?)`,
		repoName, string(kind), value,
	)
	if err != nil {
		return fmt.Errorf("insert rule value: %w", err)
	}
	return nil
}

// RemoveRuleValue deletes one value from a repository's rule list.
func (s *SQLite) RemoveRuleValue(ctx context.Context, repoName string, kind model.RuleKind, value string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rule_values WHERE repo_name = ? AND kind = ? AND value = ?`,
		repoName, string(kind), value,
	)
	if err != nil {
		return fmt.Errorf("delete rule value: %w", err)
	}
	return nil
}

// SaveNotifyItem upserts a notification item by id, unless the id was
// dismissed within the suppression window. The ledger check and the
// upsert are one statement so a concurrent dismissal cannot interleave
// between them and have the save resurrect the item.
func (s *SQLite) SaveNotifyItem(ctx context.Context, item *model.NotifyItem) error {
	cutoff := time.Now().Add(-DismissSuppression).UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notify_items (id, repo_name, event_type, reason, created_at_ms, link, issue_number, issue_title)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
		   SELECT 1 FROM dismissed_items WHERE item_id = ? AND dismissed_at_ms > ?
		 )
		 ON CONFLICT(id) DO UPDATE SET
		   repo_name = excluded.repo_name,
		   event_type = excluded.event_type,
		   reason = excluded.reason,
		   created_at_ms = excluded.created_at_ms,
		   link = excluded.link,
		   issue_number = excluded.issue_number,
		   issue_title = excluded.issue_title`,
		item.ID, item.RepoName, string(item.EventType), item.Reason,
		item.CreatedAt, item.Link, item.Issue.Number, item.Issue.Title,
		item.ID, cutoff,
	)
	if err != nil {
		return fmt.Errorf("upsert notify item: %w", err)
	}
	return nil
}

// ListNotifyItems returns a repository's unread items, newest first.
func (s *SQLite) ListNotifyItems(ctx context.Context, repoName string) ([]model.NotifyItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_name, event_type, reason, created_at_ms, link, issue_number, issue_title
		 FROM notify_items WHERE repo_name = ? ORDER BY created_at_ms DESC`, repoName,
	)
	if err != nil {
		return nil, fmt.Errorf("query notify items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotifyItems(rows)
}

// ListAllNotifyItems returns every unread item across repositories,
// newest first.
func (s *SQLite) ListAllNotifyItems(ctx context.Context) ([]model.NotifyItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_name, event_type, reason, created_at_ms, link, issue_number, issue_title
		 FROM notify_items ORDER BY created_at_ms DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query notify items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotifyItems(rows)
}

// RemoveNotifyItem deletes an item and records the dismissal, atomically.
func (s *SQLite) RemoveNotifyItem(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notify_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete notify item: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO dismissed_items (item_id, dismissed_at_ms) VALUES (?, ?)`,
		id, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record dismissal: %w", err)
	}
	return tx.Commit()
}

// RemoveAllNotifyItems dismisses every stored item.
func (s *SQLite) RemoveAllNotifyItems(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO dismissed_items (item_id, dismissed_at_ms)
		 SELECT id, ? FROM notify_items`, now,
	); err != nil {
		return fmt.Errorf("record dismissals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notify_items`); err != nil {
		return fmt.Errorf("delete notify items: %w", err)
	}
	return tx.Commit()
}

// LastFetched returns the poll watermark, or the zero time if no cycle
// has completed yet.
func (s *SQLite) LastFetched(ctx context.Context) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_fetched_ms FROM poll_state WHERE id = 1`,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("scan poll state: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// SetLastFetched advances the watermark. A value at or before the stored
// one is ignored, keeping the watermark monotonic.
func (s *SQLite) SetLastFetched(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_state (id, last_fetched_ms) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_fetched_ms = MAX(last_fetched_ms, excluded.last_fetched_ms)`,
		t.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set last fetched: %w", err)
	}
	return nil
}

// PruneDismissed drops ledger entries older than the given cutoff.
func (s *SQLite) PruneDismissed(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM dismissed_items WHERE dismissed_at_ms < ?`, before.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("prune dismissed: %w", err)
	}
	return nil
}

func scanNotifyItems(rows *sql.Rows) ([]model.NotifyItem, error) {
	var items []model.NotifyItem
	for rows.Next() {
		var it model.NotifyItem
		var eventType string
		err := rows.Scan(&it.ID, &it.RepoName, &eventType, &it.Reason,
			&it.CreatedAt, &it.Link, &it.Issue.Number, &it.Issue.Title)
		if err != nil {
			return nil, fmt.Errorf("scan notify item: %w", err)
		}
		it.EventType = model.EventKind(eventType)
		items = append(items, it)
	}
	return items, rows.Err()
}
