package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mosaicmedia/catalog/internal/domain"
	"github.com/mosaicmedia/catalog/internal/feed"
	"github.com/mosaicmedia/catalog/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var allowedKinds = map[string]struct{}{
	domain.KindShow: {},
	domain.KindBook: {},
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type mediaCreateRequest struct {
	Kind              string   `json:"kind"`
	Slug              string   `json:"slug"`
	Title             string   `json:"title"`
	AbbreviatedTitles []string `json:"abbreviatedTitles"`
	StartDate         *string  `json:"startDate"`
	EndDate           *string  `json:"endDate"`
	Genres            []string `json:"genres"`
}

type mediaListResponse struct {
	Items      []mediaResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type mediaResponse struct {
	ID                string           `json:"id"`
	Kind              string           `json:"kind"`
	Slug              string           `json:"slug"`
	Title             string           `json:"title"`
	AbbreviatedTitles []string         `json:"abbreviatedTitles"`
	AverageRating     *float64         `json:"averageRating"`
	RatingFrequencies map[string]int64 `json:"ratingFrequencies"`
	StartDate         *string          `json:"startDate"`
	EndDate           *string          `json:"endDate"`
	Genres            []string         `json:"genres"`
	Year              *int             `json:"year"`
	RunLengthDays     *int             `json:"runLengthDays"`
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMediaFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Media.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list media error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list media")
		return
	}

	items := make([]mediaResponse, 0, len(result.Items))
	for _, media := range result.Items {
		items = append(items, toMediaResponse(media, time.Now().UTC()))
	}

	resp := mediaListResponse{Items: items}
	if result.NextCursor != nil {
		resp.NextCursor = result.NextCursor
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func buildMediaFilters(query url.Values) (repository.MediaListFilters, error) {
	var filters repository.MediaListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("kind")); val != "" {
		if _, ok := allowedKinds[val]; !ok {
			return filters, fmt.Errorf("invalid kind value")
		}
		filters.Kind = &val
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		filters.Genre = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req mediaCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	req.Slug = strings.TrimSpace(req.Slug)
	req.Title = strings.TrimSpace(req.Title)
	if req.Slug == "" || req.Title == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug and title are required")
		return
	}
	if !slugPattern.MatchString(req.Slug) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug must be lowercase letters, digits, and hyphens")
		return
	}
	if _, ok := allowedKinds[req.Kind]; !ok {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind must be one of {show, book}")
		return
	}

	startDate, err := parseDatePtr(req.StartDate)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startDate must follow YYYY-MM-DD format")
		return
	}
	endDate, err := parseDatePtr(req.EndDate)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "endDate must follow YYYY-MM-DD format")
		return
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "endDate cannot precede startDate")
		return
	}

	media, err := s.repo.Media.Create(r.Context(), repository.MediaCreateParams{
		Kind:              req.Kind,
		Slug:              req.Slug,
		Title:             req.Title,
		AbbreviatedTitles: trimAll(req.AbbreviatedTitles),
		StartDate:         startDate,
		EndDate:           endDate,
		Genres:            trimAll(req.Genres),
	})
	if err != nil {
		if isUniqueViolation(err) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "slug already exists")
			return
		}
		s.logger.Printf("create media error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create media")
		return
	}

	s.wireFeedTopology(r.Context(), media)

	location := fmt.Sprintf("/media/%s", url.PathEscape(media.Slug))
	w.Header().Set("Location", location)
	s.respondJSON(w, http.StatusCreated, toMediaResponse(media, time.Now().UTC()))
}

// wireFeedTopology establishes the derived-feed follow edges for a freshly
// created media entity. The wiring is fire-and-forget: a feed service outage
// must not fail the creation that already committed.
func (s *Server) wireFeedTopology(ctx context.Context, media domain.Media) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.FeedTimeoutSecs)*time.Second)
	defer cancel()

	if err := feed.Setup(ctx, s.feeds, media.Kind, media.ID); err != nil {
		s.logger.Printf("feed topology setup failed for %s: %v", media.Slug, err)
	}
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	media, ok := s.fetchMediaBySlug(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, toMediaResponse(media, time.Now().UTC()))
}

func (s *Server) handleRatingFrequencies(w http.ResponseWriter, r *http.Request) {
	media, ok := s.fetchMediaBySlug(w, r)
	if !ok {
		return
	}

	freqs := media.RatingFrequencies
	if r.URL.Query().Get("recalculate") == "true" {
		recomputed, err := s.repo.Media.CalculateRatingFrequencies(r.Context(), media.ID)
		if err != nil {
			s.logger.Printf("calculate rating frequencies error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to calculate rating frequencies")
			return
		}
		freqs = recomputed
	}

	s.respondJSON(w, http.StatusOK, frequenciesPayload(freqs))
}

type castMember struct {
	PersonName    string `json:"personName"`
	CharacterName string `json:"characterName"`
	Role          string `json:"role"`
}

type castReplaceRequest struct {
	Cast []castMember `json:"cast"`
}

var allowedRoles = map[string]struct{}{
	domain.RoleMain:       {},
	domain.RoleSupporting: {},
}

func (s *Server) handleListCast(w http.ResponseWriter, r *http.Request) {
	media, ok := s.fetchMediaBySlug(w, r)
	if !ok {
		return
	}

	cast, err := s.repo.Cast.ListForMedia(r.Context(), media.ID)
	if err != nil {
		s.logger.Printf("list cast error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list cast")
		return
	}

	members := make([]castMember, 0, len(cast))
	for _, c := range cast {
		members = append(members, castMember{PersonName: c.PersonName, CharacterName: c.CharacterName, Role: c.Role})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"cast": members})
}

func (s *Server) handleReplaceCast(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	media, ok := s.fetchMediaBySlug(w, r)
	if !ok {
		return
	}

	var req castReplaceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	assignments := make([]domain.CastAssignment, 0, len(req.Cast))
	for _, member := range req.Cast {
		name := strings.TrimSpace(member.PersonName)
		if name == "" {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "personName is required for every cast member")
			return
		}
		role := member.Role
		if role == "" {
			role = domain.RoleSupporting
		}
		if _, okRole := allowedRoles[role]; !okRole {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be one of {main, supporting}")
			return
		}
		assignments = append(assignments, domain.CastAssignment{
			MediaID:       media.ID,
			PersonName:    name,
			CharacterName: strings.TrimSpace(member.CharacterName),
			Role:          role,
		})
	}

	if err := s.repo.Cast.ReplaceForMedia(r.Context(), media.ID, assignments); err != nil {
		s.logger.Printf("replace cast error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replace cast")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"count": len(assignments)})
}

// fetchMediaBySlug resolves the slug path parameter, writing the error
// response itself when the lookup fails.
func (s *Server) fetchMediaBySlug(w http.ResponseWriter, r *http.Request) (domain.Media, bool) {
	slug, err := decodeSlugParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return domain.Media{}, false
	}

	media, err := s.repo.Media.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return domain.Media{}, false
		}
		s.logger.Printf("fetch media %q failed: %v", slug, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch media")
		return domain.Media{}, false
	}
	return media, true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func toMediaResponse(media domain.Media, now time.Time) mediaResponse {
	resp := mediaResponse{
		ID:                media.ID,
		Kind:              media.Kind,
		Slug:              media.Slug,
		Title:             media.Title,
		AbbreviatedTitles: media.AbbreviatedTitles,
		AverageRating:     media.AverageRating,
		RatingFrequencies: frequenciesPayload(media.RatingFrequencies),
		Genres:            media.Genres,
		Year:              media.Year(),
	}
	if resp.AbbreviatedTitles == nil {
		resp.AbbreviatedTitles = []string{}
	}
	if resp.Genres == nil {
		resp.Genres = []string{}
	}
	if media.StartDate != nil {
		formatted := media.StartDate.Format("2006-01-02")
		resp.StartDate = &formatted
	}
	if media.EndDate != nil {
		formatted := media.EndDate.Format("2006-01-02")
		resp.EndDate = &formatted
	}
	if length := media.RunLength(now); length != nil {
		days := int(*length / (24 * time.Hour))
		resp.RunLengthDays = &days
	}
	return resp
}

// frequenciesPayload renders the ledger with string keys for JSON, keeping
// every bucket present.
func frequenciesPayload(freqs domain.RatingFrequencies) map[string]int64 {
	normalized := freqs.Normalize()
	payload := make(map[string]int64, len(normalized))
	for bucket, count := range normalized {
		payload[strconv.Itoa(bucket)] = count
	}
	return payload
}

func parseDatePtr(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func decodeSlugParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "slug")
	if raw == "" {
		return "", fmt.Errorf("missing slug parameter")
	}
	slug, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid slug parameter")
	}
	return slug, nil
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}

// isUniqueViolation checks for the postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
