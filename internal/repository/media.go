package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicmedia/catalog/internal/domain"
)

// MediaRepository provides persistence helpers for media entities.
type MediaRepository struct {
	pool *pgxpool.Pool
}

const mediaColumns = `
    id,
    kind,
    slug,
    title,
    abbreviated_titles,
    average_rating,
    rating_frequencies,
    start_date,
    end_date,
    genres,
    created_at,
    updated_at
`

// MediaCreateParams bundles the fields required to create a media entity.
type MediaCreateParams struct {
	Kind              string
	Slug              string
	Title             string
	AbbreviatedTitles []string
	StartDate         *time.Time
	EndDate           *time.Time
	Genres            []string
}

// MediaListFilters encapsulates search and pagination options.
type MediaListFilters struct {
	Query  *string
	Kind   *string
	Year   *int
	Genre  *string
	Limit  int
	Cursor *MediaCursor
}

// MediaCursor allows stable pagination by created_at/id.
type MediaCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MediaListResult returns the paginated payload.
type MediaListResult struct {
	Items      []domain.Media
	NextCursor *string
}

// Create inserts a new media row and returns the stored entity. The
// rating-frequency ledger starts with every bucket present at zero.
func (r *MediaRepository) Create(ctx context.Context, params MediaCreateParams) (domain.Media, error) {
	freqJSON, err := marshalFrequencies(domain.NewRatingFrequencies())
	if err != nil {
		return domain.Media{}, err
	}

	query := fmt.Sprintf(`
        INSERT INTO media (kind, slug, title, abbreviated_titles, rating_frequencies, start_date, end_date, genres)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, mediaColumns)

	titles := params.AbbreviatedTitles
	if titles == nil {
		titles = []string{}
	}
	genres := params.Genres
	if genres == nil {
		genres = []string{}
	}

	row := r.pool.QueryRow(ctx, query, params.Kind, params.Slug, params.Title, titles, freqJSON, params.StartDate, params.EndDate, genres)
	return scanMedia(row)
}

// GetByID fetches a media entity by its identifier.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (domain.Media, error) {
	query := fmt.Sprintf(`SELECT %s FROM media WHERE id = $1`, mediaColumns)
	row := r.pool.QueryRow(ctx, query, id)
	media, err := scanMedia(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Media{}, ErrNotFound
		}
		return domain.Media{}, err
	}
	return media, nil
}

// GetBySlug fetches a media entity by its unique slug.
func (r *MediaRepository) GetBySlug(ctx context.Context, slug string) (domain.Media, error) {
	query := fmt.Sprintf(`SELECT %s FROM media WHERE slug = $1`, mediaColumns)
	row := r.pool.QueryRow(ctx, query, slug)
	media, err := scanMedia(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Media{}, ErrNotFound
		}
		return domain.Media{}, err
	}
	return media, nil
}

// List returns media entities that match the provided filters.
func (r *MediaRepository) List(ctx context.Context, filters MediaListFilters) (MediaListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		p1 := arg(q)
		p2 := arg(strings.TrimSpace(*filters.Query))
		where = append(where, fmt.Sprintf("(title ILIKE %s OR %s ILIKE ANY(abbreviated_titles))", p1, p2))
	}
	if filters.Kind != nil && strings.TrimSpace(*filters.Kind) != "" {
		where = append(where, fmt.Sprintf("kind = %s", arg(strings.TrimSpace(*filters.Kind))))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("EXTRACT(YEAR FROM start_date) = %s", arg(*filters.Year)))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf("%s ILIKE ANY(genres)", arg(strings.TrimSpace(*filters.Genre))))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(mediaColumns)
	queryBuilder.WriteString(" FROM media")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MediaListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Media, 0)
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return MediaListResult{}, err
		}
		items = append(items, media)
	}
	if err := rows.Err(); err != nil {
		return MediaListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		cursor := MediaCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		token, err := encodeCursor(cursor)
		if err != nil {
			return MediaListResult{}, err
		}
		nextCursor = &token
	}

	return MediaListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanMedia(row pgx.Row) (domain.Media, error) {
	var (
		media     domain.Media
		avgRating *float64
		freqJSON  []byte
		startDate *time.Time
		endDate   *time.Time
	)

	err := row.Scan(
		&media.ID,
		&media.Kind,
		&media.Slug,
		&media.Title,
		&media.AbbreviatedTitles,
		&avgRating,
		&freqJSON,
		&startDate,
		&endDate,
		&media.Genres,
		&media.CreatedAt,
		&media.UpdatedAt,
	)
	if err != nil {
		return domain.Media{}, err
	}

	media.AverageRating = avgRating
	media.StartDate = startDate
	media.EndDate = endDate

	freqs, err := unmarshalFrequencies(freqJSON)
	if err != nil {
		return domain.Media{}, err
	}
	media.RatingFrequencies = freqs

	return media, nil
}

// marshalFrequencies serializes the ledger with string bucket keys, matching
// the jsonb column shape.
func marshalFrequencies(freqs domain.RatingFrequencies) ([]byte, error) {
	keyed := make(map[string]int64, len(freqs))
	for bucket, count := range freqs {
		keyed[strconv.Itoa(bucket)] = count
	}
	return json.Marshal(keyed)
}

// unmarshalFrequencies parses the jsonb column and normalizes so that every
// known bucket is present even when the stored object is sparse.
func unmarshalFrequencies(payload []byte) (domain.RatingFrequencies, error) {
	freqs := domain.NewRatingFrequencies()
	if len(payload) == 0 {
		return freqs, nil
	}
	keyed := make(map[string]int64)
	if err := json.Unmarshal(payload, &keyed); err != nil {
		return nil, fmt.Errorf("parse rating frequencies: %w", err)
	}
	for key, count := range keyed {
		bucket, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if domain.ValidBucket(bucket) {
			freqs[bucket] = count
		}
	}
	return freqs, nil
}

func encodeCursor(c MediaCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MediaCursor.
func DecodeCursor(token string) (*MediaCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MediaCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if !ValidUUID(cursor.ID) {
		return nil, fmt.Errorf("invalid cursor id")
	}
	return &cursor, nil
}
