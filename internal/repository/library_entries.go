package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicmedia/catalog/internal/domain"
)

// LibraryEntriesRepository provides helpers for per-user library entries.
type LibraryEntriesRepository struct {
	pool *pgxpool.Pool
}

// LibraryEntryUpsertParams captures the payload required to upsert an entry.
type LibraryEntryUpsertParams struct {
	MediaID  string
	UserID   string
	Status   string
	Progress int
	Rating   *int
}

// UpsertResult reports the stored entry plus the information the caller
// needs to keep the rating-frequency ledger in sync: whether the row was
// newly created and the rating it carried beforehand.
type UpsertResult struct {
	Entry          domain.LibraryEntry
	Inserted       bool
	PreviousRating *int
}

// Upsert inserts or updates a library entry. The previous rating is captured
// in the same statement so a rating change can be applied to the ledger
// exactly once.
func (r *LibraryEntriesRepository) Upsert(ctx context.Context, params LibraryEntryUpsertParams) (UpsertResult, error) {
	const query = `
        WITH previous AS (
            SELECT rating FROM library_entries WHERE media_id = $1 AND user_id = $2
        )
        INSERT INTO library_entries (media_id, user_id, status, progress, rating)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (media_id, user_id)
        DO UPDATE SET status = EXCLUDED.status,
                      progress = EXCLUDED.progress,
                      rating = EXCLUDED.rating,
                      updated_at = now()
        RETURNING media_id, user_id, status, progress, rating, created_at, updated_at,
                  (xmax = 0) AS inserted,
                  (SELECT rating FROM previous) AS previous_rating
    `

	var result UpsertResult
	err := r.pool.QueryRow(ctx, query, params.MediaID, params.UserID, params.Status, params.Progress, params.Rating).Scan(
		&result.Entry.MediaID,
		&result.Entry.UserID,
		&result.Entry.Status,
		&result.Entry.Progress,
		&result.Entry.Rating,
		&result.Entry.CreatedAt,
		&result.Entry.UpdatedAt,
		&result.Inserted,
		&result.PreviousRating,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return UpsertResult{}, ErrNotFound
		}
		return UpsertResult{}, err
	}
	return result, nil
}

// Get retrieves the library entry for a specific user/media combination.
func (r *LibraryEntriesRepository) Get(ctx context.Context, mediaID, userID string) (domain.LibraryEntry, error) {
	const query = `
        SELECT media_id, user_id, status, progress, rating, created_at, updated_at
        FROM library_entries
        WHERE media_id = $1 AND user_id = $2
    `
	var entry domain.LibraryEntry
	err := r.pool.QueryRow(ctx, query, mediaID, userID).Scan(
		&entry.MediaID,
		&entry.UserID,
		&entry.Status,
		&entry.Progress,
		&entry.Rating,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.LibraryEntry{}, ErrNotFound
		}
		return domain.LibraryEntry{}, err
	}
	return entry, nil
}

// ListForMedia returns the most recently updated entries for a media entity.
func (r *LibraryEntriesRepository) ListForMedia(ctx context.Context, mediaID string, limit int) ([]domain.LibraryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
        SELECT media_id, user_id, status, progress, rating, created_at, updated_at
        FROM library_entries
        WHERE media_id = $1
        ORDER BY updated_at DESC
        LIMIT $2
    `, mediaID, limit)
	if err != nil {
		return nil, fmt.Errorf("list library entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LibraryEntry
	for rows.Next() {
		var entry domain.LibraryEntry
		if err := rows.Scan(
			&entry.MediaID,
			&entry.UserID,
			&entry.Status,
			&entry.Progress,
			&entry.Rating,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan library entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library entries: %w", err)
	}
	return entries, nil
}
