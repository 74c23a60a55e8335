package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicmedia/catalog/internal/domain"
)

// CommentsRepository provides persistence helpers for comments and likes.
type CommentsRepository struct {
	pool *pgxpool.Pool
}

const commentColumns = `
    id,
    user_id,
    post_id,
    parent_id,
    content,
    content_formatted,
    blocked,
    deleted_at,
    likes_count,
    replies_count,
    edited_at,
    created_at,
    updated_at
`

// CommentCreateParams bundles the fields required to create a comment.
type CommentCreateParams struct {
	UserID           string
	PostID           string
	ParentID         *string
	Content          string
	ContentFormatted string
}

// CommentListFilters encapsulates filter and pagination options. When
// ParentID is set only replies to that comment are returned.
type CommentListFilters struct {
	PostID   string
	ParentID *string
	Limit    int
	Cursor   *CommentCursor
}

// CommentCursor allows stable pagination by created_at/id.
type CommentCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// CommentListResult returns the paginated payload.
type CommentListResult struct {
	Items      []domain.Comment
	NextCursor *string
}

// Create inserts a comment. Replies bump the parent's reply counter in the
// same transaction; a missing parent fails the whole operation.
func (r *CommentsRepository) Create(ctx context.Context, params CommentCreateParams) (domain.Comment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("begin comment create: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.ParentID != nil {
		tag, err := tx.Exec(ctx, `
            UPDATE comments
            SET replies_count = replies_count + 1, updated_at = now()
            WHERE id = $1 AND post_id = $2 AND deleted_at IS NULL
        `, *params.ParentID, params.PostID)
		if err != nil {
			return domain.Comment{}, fmt.Errorf("bump reply counter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Comment{}, ErrNotFound
		}
	}

	query := fmt.Sprintf(`
        INSERT INTO comments (user_id, post_id, parent_id, content, content_formatted)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, commentColumns)

	comment, err := scanComment(tx.QueryRow(ctx, query, params.UserID, params.PostID, params.ParentID, params.Content, params.ContentFormatted))
	if err != nil {
		return domain.Comment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Comment{}, fmt.Errorf("commit comment create: %w", err)
	}
	return comment, nil
}

// GetByID fetches a comment by its identifier.
func (r *CommentsRepository) GetByID(ctx context.Context, id string) (domain.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments WHERE id = $1`, commentColumns)
	comment, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Comment{}, ErrNotFound
		}
		return domain.Comment{}, err
	}
	return comment, nil
}

// List returns comments for a post, optionally narrowed to the replies of a
// single parent comment.
func (r *CommentsRepository) List(ctx context.Context, filters CommentListFilters) (CommentListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := []string{"post_id = $1"}
	args := []interface{}{filters.PostID}
	if filters.ParentID != nil {
		args = append(args, *filters.ParentID)
		where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if filters.Cursor != nil {
		args = append(args, filters.Cursor.CreatedAt)
		created := fmt.Sprintf("$%d", len(args))
		args = append(args, filters.Cursor.ID)
		id := fmt.Sprintf("$%d", len(args))
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", created, id))
	}

	query := fmt.Sprintf(`
        SELECT %s FROM comments
        WHERE %s
        ORDER BY created_at DESC, id DESC
        LIMIT %d
    `, commentColumns, strings.Join(where, " AND "), filters.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return CommentListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return CommentListResult{}, err
		}
		items = append(items, comment)
	}
	if err := rows.Err(); err != nil {
		return CommentListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCommentCursor(CommentCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return CommentListResult{}, err
		}
		nextCursor = &token
	}

	return CommentListResult{Items: items, NextCursor: nextCursor}, nil
}

// Update edits the comment body and stamps edited_at. Only the author may
// edit.
func (r *CommentsRepository) Update(ctx context.Context, id, userID, content, contentFormatted string) (domain.Comment, error) {
	query := fmt.Sprintf(`
        UPDATE comments
        SET content = $3,
            content_formatted = $4,
            edited_at = now(),
            updated_at = now()
        WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
        RETURNING %s
    `, commentColumns)

	comment, err := scanComment(r.pool.QueryRow(ctx, query, id, userID, content, contentFormatted))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Comment{}, ErrNotFound
		}
		return domain.Comment{}, err
	}
	return comment, nil
}

// SoftDelete marks the comment as deleted without removing the row, so the
// thread structure and counters stay intact.
func (r *CommentsRepository) SoftDelete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE comments
        SET deleted_at = now(), updated_at = now()
        WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
    `, id, userID)
	if err != nil {
		return fmt.Errorf("soft delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Like records a user's like, bumping the counter only on first like.
func (r *CommentsRepository) Like(ctx context.Context, commentID, userID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin like: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        INSERT INTO comment_likes (comment_id, user_id)
        VALUES ($1,$2)
        ON CONFLICT (comment_id, user_id) DO NOTHING
    `, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	bumped, err := tx.Exec(ctx, `
        UPDATE comments SET likes_count = likes_count + 1, updated_at = now() WHERE id = $1
    `, commentID)
	if err != nil {
		return false, fmt.Errorf("bump like counter: %w", err)
	}
	if bumped.RowsAffected() == 0 {
		return false, ErrNotFound
	}
	return true, tx.Commit(ctx)
}

// Unlike removes a user's like if present, lowering the counter at most once.
func (r *CommentsRepository) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin unlike: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2
    `, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE comments SET likes_count = GREATEST(likes_count - 1, 0), updated_at = now() WHERE id = $1
    `, commentID); err != nil {
		return false, fmt.Errorf("lower like counter: %w", err)
	}
	return true, tx.Commit(ctx)
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var comment domain.Comment
	err := row.Scan(
		&comment.ID,
		&comment.UserID,
		&comment.PostID,
		&comment.ParentID,
		&comment.Content,
		&comment.ContentFormatted,
		&comment.Blocked,
		&comment.DeletedAt,
		&comment.LikesCount,
		&comment.RepliesCount,
		&comment.EditedAt,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func encodeCommentCursor(c CommentCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCommentCursor parses a cursor token into a CommentCursor.
func DecodeCommentCursor(token string) (*CommentCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor CommentCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if !ValidUUID(cursor.ID) {
		return nil, fmt.Errorf("invalid cursor id")
	}
	return &cursor, nil
}
