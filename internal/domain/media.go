package domain

import "time"

// Media represents the canonical media entity (a show or a book) in the
// catalog.
type Media struct {
	ID                string
	Kind              string
	Slug              string
	Title             string
	AbbreviatedTitles []string
	AverageRating     *float64
	RatingFrequencies RatingFrequencies
	StartDate         *time.Time
	EndDate           *time.Time
	Genres            []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Media kinds accepted by the catalog.
const (
	KindShow = "show"
	KindBook = "book"
)

// RunLength returns the elapsed duration between StartDate and the effective
// end of the run. A missing EndDate means the run is ongoing and is measured
// against now. Returns nil when StartDate is absent, regardless of EndDate.
func (m Media) RunLength(now time.Time) *time.Duration {
	if m.StartDate == nil {
		return nil
	}
	end := now
	if m.EndDate != nil {
		end = *m.EndDate
	}
	d := end.Sub(*m.StartDate)
	return &d
}

// Year returns the release year derived from StartDate, or nil when the
// start date is unknown.
func (m Media) Year() *int {
	if m.StartDate == nil {
		return nil
	}
	y := m.StartDate.Year()
	return &y
}
