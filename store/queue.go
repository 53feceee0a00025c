package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courtsift/statscrape/models"
)

// Add inserts a work item discovered by the external link process. Items are
// identified by (category, season, season_type); re-adding an existing one
// refreshes its URL without touching the scraped flag. Returns true when the
// item is new.
func (s *Store) Add(ctx context.Context, item models.WorkItem) (bool, error) {
	now := timestamp(time.Now())

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM work_items WHERE category = ? AND season = ? AND season_type = ?`,
		item.Category, item.Season, item.SeasonType,
	).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO work_items (category, season, season_type, url, scraped, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			item.Category, item.Season, item.SeasonType, item.URL, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("add work item: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("add work item: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE work_items SET url = ?, updated_at = ?
		WHERE category = ? AND season = ? AND season_type = ?`,
		item.URL, now, item.Category, item.Season, item.SeasonType,
	)
	if err != nil {
		return false, fmt.Errorf("add work item: %w", err)
	}
	return false, nil
}

// ListPending returns the category's unscraped work items, oldest first.
func (s *Store) ListPending(ctx context.Context, category string) ([]models.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, season, season_type, url, scraped, created_at, updated_at
		FROM work_items
		WHERE category = ? AND scraped = 0
		ORDER BY created_at, id`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return items, nil
}

// ListItems returns all work items of a category, for reporting.
func (s *Store) ListItems(ctx context.Context, category string) ([]models.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, season, season_type, url, scraped, created_at, updated_at
		FROM work_items
		WHERE category = ?
		ORDER BY created_at, id`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// MarkScraped flips a work item to scraped. Callers invoke this only after a
// fully successful persist; the ordering is what makes interrupted runs
// retryable.
func (s *Store) MarkScraped(ctx context.Context, category, season, seasonType string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_items SET scraped = 1, updated_at = ?
		WHERE category = ? AND season = ? AND season_type = ?`,
		timestamp(time.Now()), category, season, seasonType,
	)
	if err != nil {
		return fmt.Errorf("mark scraped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark scraped: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark scraped: no work item for %s/%s/%s", category, season, seasonType)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(r rowScanner) (models.WorkItem, error) {
	var item models.WorkItem
	var scraped int
	var createdAt, updatedAt string
	err := r.Scan(&item.ID, &item.Category, &item.Season, &item.SeasonType, &item.URL, &scraped, &createdAt, &updatedAt)
	if err != nil {
		return item, err
	}
	item.Scraped = scraped != 0
	item.CreatedAt = parseTimestamp(createdAt)
	item.UpdatedAt = parseTimestamp(updatedAt)
	return item, nil
}
