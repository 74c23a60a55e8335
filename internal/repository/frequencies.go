package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mosaicmedia/catalog/internal/domain"
)

// CalculateRatingFrequencies recomputes the full bucket-to-count mapping by
// scanning the library entries that belong to the media entity. The result
// covers every known bucket, defaulting absent buckets to zero. The stored
// ledger is not touched.
func (r *MediaRepository) CalculateRatingFrequencies(ctx context.Context, mediaID string) (domain.RatingFrequencies, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT rating, COUNT(*)
        FROM library_entries
        WHERE media_id = $1 AND rating IS NOT NULL
        GROUP BY rating
    `, mediaID)
	if err != nil {
		return nil, fmt.Errorf("calculate rating frequencies: %w", err)
	}
	defer rows.Close()

	freqs := domain.NewRatingFrequencies()
	for rows.Next() {
		var bucket int
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan rating frequency: %w", err)
		}
		if domain.ValidBucket(bucket) {
			freqs[bucket] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating frequencies: %w", err)
	}
	return freqs, nil
}

// IncrementRatingFrequency raises the stored count for a bucket by one,
// treating a missing entry as zero. The whole adjustment is a single
// statement so concurrent writers rely on the database's row-level
// atomicity.
func (r *MediaRepository) IncrementRatingFrequency(ctx context.Context, mediaID string, bucket int) error {
	return r.adjustRatingFrequency(ctx, mediaID, bucket, `
        UPDATE media
        SET rating_frequencies = jsonb_set(
                COALESCE(rating_frequencies, '{}'::jsonb),
                ARRAY[$2],
                to_jsonb(COALESCE((rating_frequencies->>$2)::bigint, 0) + 1)
            ),
            updated_at = now()
        WHERE id = $1
    `)
}

// DecrementRatingFrequency lowers the stored count for a bucket by one.
// Counts never go below zero.
func (r *MediaRepository) DecrementRatingFrequency(ctx context.Context, mediaID string, bucket int) error {
	return r.adjustRatingFrequency(ctx, mediaID, bucket, `
        UPDATE media
        SET rating_frequencies = jsonb_set(
                COALESCE(rating_frequencies, '{}'::jsonb),
                ARRAY[$2],
                to_jsonb(GREATEST(COALESCE((rating_frequencies->>$2)::bigint, 0) - 1, 0))
            ),
            updated_at = now()
        WHERE id = $1
    `)
}

func (r *MediaRepository) adjustRatingFrequency(ctx context.Context, mediaID string, bucket int, query string) error {
	if !domain.ValidBucket(bucket) {
		return fmt.Errorf("unknown rating bucket %d", bucket)
	}
	tag, err := r.pool.Exec(ctx, query, mediaID, strconv.Itoa(bucket))
	if err != nil {
		return fmt.Errorf("adjust rating frequency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecalculateAverageRating derives the average rating from the media's rated
// library entries. A bucket corresponds to five times its value in percent,
// so stored averages always fall in (0, 100]. Media with no rated entries
// get a NULL average.
func (r *MediaRepository) RecalculateAverageRating(ctx context.Context, mediaID string) (*float64, error) {
	const query = `
        UPDATE media
        SET average_rating = (
                SELECT AVG(rating) * 5
                FROM library_entries
                WHERE media_id = $1 AND rating IS NOT NULL
            ),
            updated_at = now()
        WHERE id = $1
        RETURNING average_rating
    `
	var avg *float64
	if err := r.pool.QueryRow(ctx, query, mediaID).Scan(&avg); err != nil {
		return nil, fmt.Errorf("recalculate average rating: %w", err)
	}
	return avg, nil
}
