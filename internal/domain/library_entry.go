package domain

import "time"

// LibraryEntry is a user's personal record of progress and rating against a
// media entity.
type LibraryEntry struct {
	MediaID   string
	UserID    string
	Status    string
	Progress  int
	Rating    *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Library entry statuses accepted by the catalog.
const (
	StatusCurrent   = "current"
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusOnHold    = "on_hold"
	StatusDropped   = "dropped"
)
