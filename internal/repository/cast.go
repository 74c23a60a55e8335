package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicmedia/catalog/internal/domain"
)

// CastRepository provides helpers for cast assignments on media entities.
type CastRepository struct {
	pool *pgxpool.Pool
}

// ReplaceForMedia swaps the full cast list for a media entity in one
// transaction.
func (r *CastRepository) ReplaceForMedia(ctx context.Context, mediaID string, cast []domain.CastAssignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cast replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cast_assignments WHERE media_id = $1`, mediaID); err != nil {
		return fmt.Errorf("clear cast assignments: %w", err)
	}

	for i, member := range cast {
		_, err := tx.Exec(ctx, `
            INSERT INTO cast_assignments (media_id, person_name, character_name, role, ordinal)
            VALUES ($1,$2,$3,$4,$5)
        `, mediaID, member.PersonName, member.CharacterName, member.Role, i)
		if err != nil {
			return fmt.Errorf("insert cast assignment: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListForMedia returns the cast in credit order.
func (r *CastRepository) ListForMedia(ctx context.Context, mediaID string) ([]domain.CastAssignment, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT media_id, person_name, character_name, role, ordinal
        FROM cast_assignments
        WHERE media_id = $1
        ORDER BY ordinal
    `, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list cast assignments: %w", err)
	}
	defer rows.Close()

	cast := make([]domain.CastAssignment, 0)
	for rows.Next() {
		var member domain.CastAssignment
		if err := rows.Scan(&member.MediaID, &member.PersonName, &member.CharacterName, &member.Role, &member.Ordinal); err != nil {
			return nil, fmt.Errorf("scan cast assignment: %w", err)
		}
		cast = append(cast, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cast assignments: %w", err)
	}
	return cast, nil
}
