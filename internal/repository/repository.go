package repository

import (
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicmedia/catalog/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidUUID reports whether s has the shape of a postgres uuid literal.
// Caller-supplied ids are checked before they reach a uuid-typed query
// parameter, where malformed input would fail the whole statement.
func ValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Media          *MediaRepository
	LibraryEntries *LibraryEntriesRepository
	Cast           *CastRepository
	Comments       *CommentsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Media:          &MediaRepository{pool: pool},
		LibraryEntries: &LibraryEntriesRepository{pool: pool},
		Cast:           &CastRepository{pool: pool},
		Comments:       &CommentsRepository{pool: pool},
	}
}
