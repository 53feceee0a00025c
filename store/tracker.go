package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtsift/statscrape/models"
)

// BeginAttempt writes a processing attempt row immediately, so crashed or
// stuck runs remain visible in the log.
func (s *Store) BeginAttempt(ctx context.Context, item models.WorkItem) (*models.RunAttempt, error) {
	attempt := &models.RunAttempt{
		ID:         uuid.NewString(),
		Category:   item.Category,
		Season:     item.Season,
		SeasonType: item.SeasonType,
		URL:        item.URL,
		Status:     models.StatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_attempts (attempt_id, category, season, season_type, url, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.Category, attempt.Season, attempt.SeasonType,
		attempt.URL, string(attempt.Status), timestamp(attempt.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("begin attempt: %w", err)
	}
	return attempt, nil
}

// CompleteAttempt writes the terminal status of an attempt. A nil cause
// leaves the error column null.
func (s *Store) CompleteAttempt(ctx context.Context, attempt *models.RunAttempt, status models.AttemptStatus, cause error) error {
	attempt.Status = status
	attempt.FinishedAt = time.Now().UTC()
	var errText sql.NullString
	if cause != nil {
		attempt.Error = cause.Error()
		errText = sql.NullString{String: attempt.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_attempts SET status = ?, error = ?, finished_at = ?
		WHERE attempt_id = ?`,
		string(status), errText, timestamp(attempt.FinishedAt), attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a category's attempts, newest first.
func (s *Store) ListAttempts(ctx context.Context, category string) ([]models.RunAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, category, season, season_type, url, status, error, started_at, finished_at
		FROM run_attempts WHERE category = ?
		ORDER BY started_at DESC`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.RunAttempt
	for rows.Next() {
		var a models.RunAttempt
		var status, startedAt string
		var errText, finishedAt sql.NullString
		err := rows.Scan(&a.ID, &a.Category, &a.Season, &a.SeasonType, &a.URL, &status, &errText, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		a.Status = models.AttemptStatus(status)
		a.Error = errText.String
		a.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			a.FinishedAt = parseTimestamp(finishedAt.String)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// MarkRunning flags a category's scraper as running and stamps the
// execution time.
func (s *Store) MarkRunning(ctx context.Context, category string) error {
	return s.setRunning(ctx, category, true)
}

// MarkStopped clears the running flag. Called on every run exit path,
// including cancellation.
func (s *Store) MarkStopped(ctx context.Context, category string) error {
	return s.setRunning(ctx, category, false)
}

// setRunning writes the flag and execution stamp in one statement. Each
// status column has a single dedicated writer statement that never reads
// first, so concurrent workers cannot overwrite each other's columns with
// stale values.
func (s *Store) setRunning(ctx context.Context, category string, running bool) error {
	flag := 0
	if running {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_status (category, last_execution, last_url_scraped, is_running)
		VALUES (?, ?, NULL, ?)
		ON CONFLICT (category) DO UPDATE SET
			last_execution = excluded.last_execution,
			is_running = excluded.is_running`,
		category, timestamp(time.Now().UTC()), flag,
	)
	if err != nil {
		return fmt.Errorf("upsert run status: %w", err)
	}
	return nil
}

// RecordProgress notes the last successfully processed URL so interrupted
// runs can report how far they got. It leaves the running flag and the
// execution stamp untouched on existing rows.
func (s *Store) RecordProgress(ctx context.Context, category, url string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_status (category, last_execution, last_url_scraped, is_running)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (category) DO UPDATE SET
			last_url_scraped = excluded.last_url_scraped`,
		category, timestamp(time.Now().UTC()), url,
	)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	return nil
}

// Statuses returns the run status of every known category.
func (s *Store) Statuses(ctx context.Context) ([]models.RunStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, last_execution, last_url_scraped, is_running
		FROM run_status ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("list run statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.RunStatus
	for rows.Next() {
		var st models.RunStatus
		var lastExecution string
		var lastURL sql.NullString
		var running int
		if err := rows.Scan(&st.Category, &lastExecution, &lastURL, &running); err != nil {
			return nil, fmt.Errorf("list run statuses: %w", err)
		}
		st.LastExecution = parseTimestamp(lastExecution)
		st.LastURLScraped = lastURL.String
		st.IsRunning = running != 0
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run statuses: %w", err)
	}
	return statuses, nil
}
