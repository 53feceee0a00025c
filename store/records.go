package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/courtsift/statscrape/models"
)

// DefaultChunkSize bounds how many records share one upsert transaction.
const DefaultChunkSize = 100

// PartialError reports an upsert that failed after some chunks committed.
// Saved reflects the records that are durably stored; callers treat this as
// an expected, reportable outcome rather than a fatal one.
type PartialError struct {
	Saved int
	Chunk int // 1-based chunk that failed
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("upsert chunk %d failed after %d record(s) saved: %v", e.Chunk, e.Saved, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// UpsertResult counts the outcome of one persist call. Saved is always
// Inserted + Updated.
type UpsertResult struct {
	Saved    int
	Inserted int
	Updated  int
}

// Upsert persists a record batch idempotently, keyed by natural key, in
// chunks of chunkSize records per transaction. Within a chunk each record is
// looked up by key and either inserted or fully replaced (non-key fields
// overwritten, not merged). A chunk commits or rolls back as a unit; earlier
// chunks stay committed when a later one fails, and the returned
// PartialError carries the count that survived.
func (s *Store) Upsert(ctx context.Context, category string, records []*models.Record, chunkSize int) (UpsertResult, error) {
	var result UpsertResult
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	for start, chunk := 0, 1; start < len(records); start, chunk = start+chunkSize, chunk+1 {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		inserted, updated, err := s.upsertChunk(ctx, category, records[start:end])
		if err != nil {
			return result, &PartialError{Saved: result.Saved, Chunk: chunk, Err: err}
		}
		result.Inserted += inserted
		result.Updated += updated
		result.Saved += inserted + updated
	}
	return result, nil
}

func (s *Store) upsertChunk(ctx context.Context, category string, records []*models.Record) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := timestamp(time.Now())
	for _, rec := range records {
		if rec.Key == "" {
			return 0, 0, fmt.Errorf("record without natural key")
		}

		fields, err := encodeFields(rec.Fields)
		if err != nil {
			return 0, 0, fmt.Errorf("encode fields for %q: %w", rec.Key, err)
		}

		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM stat_records WHERE category = ? AND natural_key = ?`,
			category, rec.Key,
		).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO stat_records
					(category, natural_key, entity_id, season, season_type, fields,
					 source_url, page_number, scraped_at, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				category, rec.Key, rec.EntityID, rec.Season, rec.SeasonType, fields,
				rec.SourceURL, rec.PageNumber, timestamp(rec.ScrapedAt), now, now,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("insert %q: %w", rec.Key, err)
			}
			inserted++
		case err != nil:
			return 0, 0, fmt.Errorf("lookup %q: %w", rec.Key, err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE stat_records SET
					entity_id = ?, season = ?, season_type = ?, fields = ?,
					source_url = ?, page_number = ?, scraped_at = ?, updated_at = ?
				WHERE category = ? AND natural_key = ?`,
				rec.EntityID, rec.Season, rec.SeasonType, fields,
				rec.SourceURL, rec.PageNumber, timestamp(rec.ScrapedAt), now,
				category, rec.Key,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("update %q: %w", rec.Key, err)
			}
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, updated, nil
}

// CountRecords returns the number of stored records for a category.
func (s *Store) CountRecords(ctx context.Context, category string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stat_records WHERE category = ?`, category,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// GetRecord loads one stored record by natural key, decoding its field map.
func (s *Store) GetRecord(ctx context.Context, category, key string) (*models.Record, error) {
	var rec models.Record
	var fields, scrapedAt string
	var entityID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT natural_key, entity_id, season, season_type, fields, source_url, page_number, scraped_at
		FROM stat_records WHERE category = ? AND natural_key = ?`,
		category, key,
	).Scan(&rec.Key, &entityID, &rec.Season, &rec.SeasonType, &fields, &rec.SourceURL, &rec.PageNumber, &scrapedAt)
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", key, err)
	}
	rec.EntityID = entityID.String
	rec.ScrapedAt = parseTimestamp(scrapedAt)
	rec.Fields, err = decodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", key, err)
	}
	return &rec, nil
}

// encodeFields serializes the typed field map. Dates are stored as
// RFC 3339 date strings; null stays null.
func encodeFields(fields map[string]any) (string, error) {
	encodable := make(map[string]any, len(fields))
	for name, value := range fields {
		if t, ok := value.(time.Time); ok {
			encodable[name] = t.Format("2006-01-02")
			continue
		}
		encodable[name] = value
	}
	data, err := json.Marshal(encodable)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFields(data string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
