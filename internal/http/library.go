package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/mosaicmedia/catalog/internal/domain"
	"github.com/mosaicmedia/catalog/internal/repository"
)

var allowedStatuses = map[string]struct{}{
	domain.StatusCurrent:   {},
	domain.StatusPlanned:   {},
	domain.StatusCompleted: {},
	domain.StatusOnHold:    {},
	domain.StatusDropped:   {},
}

type libraryEntryRequest struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Rating   *int   `json:"rating"`
}

type libraryEntryResponse struct {
	MediaSlug     string    `json:"mediaSlug"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	Rating        *int      `json:"rating"`
	AverageRating *float64  `json:"averageRating"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (s *Server) handleUpsertLibraryEntry(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	media, ok := s.fetchMediaBySlug(w, r)
	if !ok {
		return
	}

	var req libraryEntryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Status == "" {
		req.Status = domain.StatusCurrent
	}
	if _, okStatus := allowedStatuses[req.Status]; !okStatus {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be one of {current, planned, completed, on_hold, dropped}")
		return
	}
	if req.Progress < 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "progress must be non-negative")
		return
	}
	if req.Rating != nil && !domain.ValidBucket(*req.Rating) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be an integer bucket between 2 and 20")
		return
	}

	result, err := s.repo.LibraryEntries.Upsert(r.Context(), repository.LibraryEntryUpsertParams{
		MediaID:  media.ID,
		UserID:   userID,
		Status:   req.Status,
		Progress: req.Progress,
		Rating:   req.Rating,
	})
	if err != nil {
		s.logger.Printf("upsert library entry error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save library entry")
		return
	}

	average := media.AverageRating
	if ratingChanged(result.PreviousRating, result.Entry.Rating) {
		average = s.applyRatingChange(r, media.ID, result.PreviousRating, result.Entry.Rating, average)
	}

	status := http.StatusOK
	if result.Inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, libraryEntryResponse{
		MediaSlug:     media.Slug,
		UserID:        result.Entry.UserID,
		Status:        result.Entry.Status,
		Progress:      result.Entry.Progress,
		Rating:        result.Entry.Rating,
		AverageRating: average,
		UpdatedAt:     result.Entry.UpdatedAt,
	})
}

// applyRatingChange adjusts the rating-frequency ledger for a single rating
// transition: the old bucket is decremented and the new one incremented, each
// at most once, then the average is rederived. Ledger failures are logged
// rather than surfaced since the library entry itself already committed.
func (s *Server) applyRatingChange(r *http.Request, mediaID string, previous, current *int, fallback *float64) *float64 {
	ctx := r.Context()

	if previous != nil {
		if err := s.repo.Media.DecrementRatingFrequency(ctx, mediaID, *previous); err != nil {
			s.logger.Printf("decrement rating frequency error: %v", err)
		}
	}
	if current != nil {
		if err := s.repo.Media.IncrementRatingFrequency(ctx, mediaID, *current); err != nil {
			s.logger.Printf("increment rating frequency error: %v", err)
		}
	}

	average, err := s.repo.Media.RecalculateAverageRating(ctx, mediaID)
	if err != nil {
		s.logger.Printf("recalculate average rating error: %v", err)
		return fallback
	}
	return average
}

func ratingChanged(previous, current *int) bool {
	switch {
	case previous == nil && current == nil:
		return false
	case previous == nil || current == nil:
		return true
	default:
		return *previous != *current
	}
}
