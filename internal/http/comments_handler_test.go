package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mosaicmedia/catalog/internal/cache"
)

func createTestComment(t *testing.T, env *serverEnv, postID string, parentID *string) commentResponse {
	t.Helper()
	body := map[string]interface{}{
		"postId":  postID,
		"content": "what a finale",
	}
	if parentID != nil {
		body["parentId"] = *parentID
	}
	rec := env.do(http.MethodPost, "/comments", body, map[string]string{"X-User-Id": "author"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp commentResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestCreateComment(t *testing.T) {
	env := newServerEnv(t)
	defer env.cleanup()

	rec := env.do(http.MethodPost, "/comments", map[string]interface{}{"postId": "p", "content": "c"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without X-User-Id", rec.Code)
	}

	rec = env.do(http.MethodPost, "/comments", map[string]interface{}{"postId": "p"}, map[string]string{"X-User-Id": "u"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing content status = %d, want 422", rec.Code)
	}

	created := createTestComment(t, env, "post-1", nil)
	if created.ContentFormatted != created.Content {
		t.Fatalf("contentFormatted should default to content, got %q", created.ContentFormatted)
	}
	if created.Relationships.User != "author" || created.Relationships.Post != "post-1" {
		t.Fatalf("relationships = %+v", created.Relationships)
	}
	if created.Relationships.Parent != nil {
		t.Fatalf("top-level comment parent = %v, want null", created.Relationships.Parent)
	}

	reply := createTestComment(t, env, "post-1", &created.ID)
	if reply.Relationships.Parent == nil || *reply.Relationships.Parent != created.ID {
		t.Fatalf("reply parent = %v, want %s", reply.Relationships.Parent, created.ID)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	rec = env.do(http.MethodPost, "/comments", map[string]interface{}{
		"postId": "post-1", "content": "orphan", "parentId": missing,
	}, map[string]string{"X-User-Id": "author"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing parent status = %d, want 404", rec.Code)
	}
}

func TestListComments(t *testing.T) {
	env := newServerEnv(t)
	defer env.cleanup()

	root := createTestComment(t, env, "post-list", nil)
	createTestComment(t, env, "post-list", &root.ID)
	createTestComment(t, env, "post-list", &root.ID)

	rec := env.do(http.MethodGet, "/comments/?post_id=post-list", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	// No redis configured, so every lookup is a miss.
	if got := rec.Header().Get("X-Cache"); got != "miss" {
		t.Fatalf("X-Cache = %q, want miss", got)
	}
	var listed commentListResponse
	decodeBody(t, rec, &listed)
	if len(listed.Comments) != 3 {
		t.Fatalf("comments = %d, want 3", len(listed.Comments))
	}

	rec = env.do(http.MethodGet, "/comments/?post_id=post-list&parent_id="+root.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("replies status = %d", rec.Code)
	}
	var replies commentListResponse
	decodeBody(t, rec, &replies)
	if len(replies.Comments) != 2 {
		t.Fatalf("replies = %d, want 2", len(replies.Comments))
	}

	rec = env.do(http.MethodGet, "/comments/", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing post_id status = %d, want 400", rec.Code)
	}
}

func TestListComments_CacheHitAndInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newServerEnvWithCache(t, cache.New(client, time.Minute))
	defer env.cleanup()

	createTestComment(t, env, "post-cached", nil)

	first := env.do(http.MethodGet, "/comments/?post_id=post-cached", nil, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first list status = %d", first.Code)
	}
	if got := first.Header().Get("X-Cache"); got != "miss" {
		t.Fatalf("first X-Cache = %q, want miss", got)
	}

	second := env.do(http.MethodGet, "/comments/?post_id=post-cached", nil, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second list status = %d", second.Code)
	}
	if got := second.Header().Get("X-Cache"); got != "hit" {
		t.Fatalf("second X-Cache = %q, want hit", got)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("cached body diverged:\nmiss: %s\nhit:  %s", first.Body.String(), second.Body.String())
	}

	// Writing a comment under the post drops its cached listings.
	createTestComment(t, env, "post-cached", nil)

	third := env.do(http.MethodGet, "/comments/?post_id=post-cached", nil, nil)
	if third.Code != http.StatusOK {
		t.Fatalf("third list status = %d", third.Code)
	}
	if got := third.Header().Get("X-Cache"); got != "miss" {
		t.Fatalf("X-Cache after write = %q, want miss", got)
	}
	var listed commentListResponse
	decodeBody(t, third, &listed)
	if len(listed.Comments) != 2 {
		t.Fatalf("comments after write = %d, want 2", len(listed.Comments))
	}

	// Unrelated posts keep their cached listings.
	createTestComment(t, env, "post-other", nil)
	env.do(http.MethodGet, "/comments/?post_id=post-other", nil, nil)
	createTestComment(t, env, "post-cached", nil)

	other := env.do(http.MethodGet, "/comments/?post_id=post-other", nil, nil)
	if got := other.Header().Get("X-Cache"); got != "hit" {
		t.Fatalf("unrelated post X-Cache = %q, want hit", got)
	}
}

func TestEditAndDeleteComment(t *testing.T) {
	env := newServerEnv(t)
	defer env.cleanup()

	created := createTestComment(t, env, "post-edit", nil)

	rec := env.do(http.MethodPatch, "/comments/"+created.ID, map[string]interface{}{
		"content": "second thoughts",
	}, map[string]string{"X-User-Id": "author"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var edited commentResponse
	decodeBody(t, rec, &edited)
	if edited.Content != "second thoughts" || edited.EditedAt == nil {
		t.Fatalf("edited comment = %+v", edited)
	}

	rec = env.do(http.MethodPatch, "/comments/"+created.ID, map[string]interface{}{
		"content": "hijack",
	}, map[string]string{"X-User-Id": "impostor"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("non-author edit status = %d, want 404", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/comments/"+created.ID, nil, map[string]string{"X-User-Id": "author"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	// Deleted comments stay in listings with their body blanked out.
	rec = env.do(http.MethodGet, "/comments/?post_id=post-edit", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list after delete status = %d", rec.Code)
	}
	var listed commentListResponse
	decodeBody(t, rec, &listed)
	if len(listed.Comments) != 1 {
		t.Fatalf("comments after delete = %d, want 1", len(listed.Comments))
	}
	if listed.Comments[0].Content != "" || listed.Comments[0].DeletedAt == nil {
		t.Fatalf("deleted comment not blanked: %+v", listed.Comments[0])
	}
}

func TestCommentEndpoints_MalformedIDs(t *testing.T) {
	env := newServerEnv(t)
	defer env.cleanup()

	headers := map[string]string{"X-User-Id": "author"}

	// A path parameter that cannot be a uuid names no comment.
	rec := env.do(http.MethodPatch, "/comments/not-a-uuid", map[string]interface{}{"content": "x"}, headers)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("edit malformed id status = %d, want 404", rec.Code)
	}
	rec = env.do(http.MethodDelete, "/comments/not-a-uuid", nil, headers)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete malformed id status = %d, want 404", rec.Code)
	}
	rec = env.do(http.MethodPost, "/comments/not-a-uuid/likes", nil, headers)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("like malformed id status = %d, want 404", rec.Code)
	}

	rec = env.do(http.MethodGet, "/comments/?post_id=p1&parent_id=not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed parent_id filter status = %d, want 400", rec.Code)
	}

	rec = env.do(http.MethodPost, "/comments", map[string]interface{}{
		"postId": "p1", "content": "c", "parentId": "not-a-uuid",
	}, headers)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("malformed parentId on create status = %d, want 404", rec.Code)
	}
}

func TestLikeComment(t *testing.T) {
	env := newServerEnv(t)
	defer env.cleanup()

	created := createTestComment(t, env, "post-like", nil)
	likesPath := "/comments/" + created.ID + "/likes"

	rec := env.do(http.MethodPost, likesPath, nil, map[string]string{"X-User-Id": "fan"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first like status = %d, want 201", rec.Code)
	}

	rec = env.do(http.MethodPost, likesPath, nil, map[string]string{"X-User-Id": "fan"})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat like status = %d, want 200", rec.Code)
	}

	rec = env.do(http.MethodGet, "/comments/?post_id=post-like", nil, nil)
	var listed commentListResponse
	decodeBody(t, rec, &listed)
	if listed.Comments[0].LikesCount != 1 {
		t.Fatalf("likesCount = %d, want 1", listed.Comments[0].LikesCount)
	}

	rec = env.do(http.MethodDelete, likesPath, nil, map[string]string{"X-User-Id": "fan"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unlike status = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/comments/?post_id=post-like", nil, nil)
	decodeBody(t, rec, &listed)
	if listed.Comments[0].LikesCount != 0 {
		t.Fatalf("likesCount after unlike = %d, want 0", listed.Comments[0].LikesCount)
	}

	rec = env.do(http.MethodPost, "/comments/00000000-0000-0000-0000-000000000000/likes", nil, map[string]string{"X-User-Id": "fan"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("like missing comment status = %d, want 404", rec.Code)
	}
}
