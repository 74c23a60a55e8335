package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mosaicmedia/catalog/internal/domain"
	"github.com/mosaicmedia/catalog/internal/repository"
)

type commentCreateRequest struct {
	PostID           string  `json:"postId"`
	ParentID         *string `json:"parentId"`
	Content          string  `json:"content"`
	ContentFormatted string  `json:"contentFormatted"`
}

type commentEditRequest struct {
	Content          string `json:"content"`
	ContentFormatted string `json:"contentFormatted"`
}

// commentResponse is the serialized shape of a comment: the comment's own
// attributes plus references to its related records.
type commentResponse struct {
	ID               string               `json:"id"`
	Content          string               `json:"content"`
	ContentFormatted string               `json:"contentFormatted"`
	Blocked          bool                 `json:"blocked"`
	DeletedAt        *time.Time           `json:"deletedAt"`
	LikesCount       int64                `json:"likesCount"`
	RepliesCount     int64                `json:"repliesCount"`
	EditedAt         *time.Time           `json:"editedAt"`
	CreatedAt        time.Time            `json:"createdAt"`
	Relationships    commentRelationships `json:"relationships"`
}

type commentRelationships struct {
	User    string  `json:"user"`
	Post    string  `json:"post"`
	Parent  *string `json:"parent"`
	Likes   string  `json:"likes"`
	Replies string  `json:"replies"`
}

type commentListResponse struct {
	Comments   []commentResponse `json:"comments"`
	NextCursor *string           `json:"nextCursor,omitempty"`
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	filters, err := buildCommentFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	cursorToken := strings.TrimSpace(r.URL.Query().Get("cursor"))
	cached, hit, err := s.cache.GetComments(r.Context(), filters.PostID, filters.ParentID, filters.Limit, cursorToken)
	if err != nil {
		s.logger.Printf("comment cache get error: %v", err)
	}
	if hit {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	result, err := s.repo.Comments.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list comments error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list comments")
		return
	}

	items := make([]commentResponse, 0, len(result.Items))
	for _, comment := range result.Items {
		items = append(items, toCommentResponse(comment))
	}
	resp := commentListResponse{Comments: items, NextCursor: result.NextCursor}

	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(resp); err != nil {
		s.logger.Printf("encode comments error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list comments")
		return
	}
	if err := s.cache.SetComments(r.Context(), filters.PostID, filters.ParentID, filters.Limit, cursorToken, payload.Bytes()); err != nil {
		s.logger.Printf("comment cache set error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload.Bytes())
}

func buildCommentFilters(query url.Values) (repository.CommentListFilters, error) {
	var filters repository.CommentListFilters

	filters.PostID = strings.TrimSpace(query.Get("post_id"))
	if filters.PostID == "" {
		return filters, fmt.Errorf("post_id is required")
	}
	if val := strings.TrimSpace(query.Get("parent_id")); val != "" {
		if !repository.ValidUUID(val) {
			return filters, fmt.Errorf("invalid parent_id value")
		}
		filters.ParentID = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCommentCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req commentCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	req.PostID = strings.TrimSpace(req.PostID)
	req.Content = strings.TrimSpace(req.Content)
	if req.PostID == "" || req.Content == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "postId and content are required")
		return
	}
	if req.ContentFormatted == "" {
		req.ContentFormatted = req.Content
	}
	if req.ParentID != nil && !repository.ValidUUID(*req.ParentID) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Parent comment not found")
		return
	}

	comment, err := s.repo.Comments.Create(r.Context(), repository.CommentCreateParams{
		UserID:           userID,
		PostID:           req.PostID,
		ParentID:         req.ParentID,
		Content:          req.Content,
		ContentFormatted: req.ContentFormatted,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Parent comment not found")
			return
		}
		s.logger.Printf("create comment error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create comment")
		return
	}

	s.invalidateCommentCache(r, comment.PostID)
	s.respondJSON(w, http.StatusCreated, toCommentResponse(comment))
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req commentEditRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required")
		return
	}
	if req.ContentFormatted == "" {
		req.ContentFormatted = req.Content
	}

	commentID, ok := s.commentIDParam(w, r)
	if !ok {
		return
	}
	comment, err := s.repo.Comments.Update(r.Context(), commentID, userID, req.Content, req.ContentFormatted)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("edit comment error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to edit comment")
		return
	}

	s.invalidateCommentCache(r, comment.PostID)
	s.respondJSON(w, http.StatusOK, toCommentResponse(comment))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	commentID, ok := s.commentIDParam(w, r)
	if !ok {
		return
	}
	comment, err := s.repo.Comments.GetByID(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch comment error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete comment")
		return
	}

	if err := s.repo.Comments.SoftDelete(r.Context(), commentID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("delete comment error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete comment")
		return
	}

	s.invalidateCommentCache(r, comment.PostID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	s.handleLikeChange(w, r, true)
}

func (s *Server) handleUnlikeComment(w http.ResponseWriter, r *http.Request) {
	s.handleLikeChange(w, r, false)
}

func (s *Server) handleLikeChange(w http.ResponseWriter, r *http.Request, like bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	commentID, ok := s.commentIDParam(w, r)
	if !ok {
		return
	}
	comment, err := s.repo.Comments.GetByID(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch comment error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update like")
		return
	}

	var changed bool
	if like {
		changed, err = s.repo.Comments.Like(r.Context(), commentID, userID)
	} else {
		changed, err = s.repo.Comments.Unlike(r.Context(), commentID, userID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("like change error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update like")
		return
	}

	if changed {
		s.invalidateCommentCache(r, comment.PostID)
	}

	status := http.StatusOK
	if like && changed {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, map[string]bool{"changed": changed})
}

// commentIDParam resolves the commentID path parameter. A value that cannot
// be a uuid cannot name an existing comment, so it is answered 404 without
// touching the database.
func (s *Server) commentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "commentID")
	if !repository.ValidUUID(id) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return "", false
	}
	return id, true
}

func (s *Server) invalidateCommentCache(r *http.Request, postID string) {
	if err := s.cache.InvalidatePost(r.Context(), postID); err != nil {
		s.logger.Printf("comment cache invalidation error for post %s: %v", postID, err)
	}
}

func toCommentResponse(comment domain.Comment) commentResponse {
	content := comment.Content
	formatted := comment.ContentFormatted
	if comment.DeletedAt != nil {
		content = ""
		formatted = ""
	}
	return commentResponse{
		ID:               comment.ID,
		Content:          content,
		ContentFormatted: formatted,
		Blocked:          comment.Blocked,
		DeletedAt:        comment.DeletedAt,
		LikesCount:       comment.LikesCount,
		RepliesCount:     comment.RepliesCount,
		EditedAt:         comment.EditedAt,
		CreatedAt:        comment.CreatedAt,
		Relationships: commentRelationships{
			User:    comment.UserID,
			Post:    comment.PostID,
			Parent:  comment.ParentID,
			Likes:   fmt.Sprintf("/comments/%s/likes", comment.ID),
			Replies: fmt.Sprintf("/comments?post_id=%s&parent_id=%s", url.QueryEscape(comment.PostID), url.QueryEscape(comment.ID)),
		},
	}
}
