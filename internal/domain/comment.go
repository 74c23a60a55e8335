package domain

import "time"

// Comment is a user comment on a post, optionally replying to another
// comment on the same post.
type Comment struct {
	ID               string
	UserID           string
	PostID           string
	ParentID         *string
	Content          string
	ContentFormatted string
	Blocked          bool
	DeletedAt        *time.Time
	LikesCount       int64
	RepliesCount     int64
	EditedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
