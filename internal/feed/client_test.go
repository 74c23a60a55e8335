package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(server.URL, "test-key", 2*time.Second, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func TestHTTPClientFollow(t *testing.T) {
	var gotPath, gotKey, gotTarget string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		var req followRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotTarget = req.Target
		w.WriteHeader(http.StatusCreated)
	})

	source := MediaAggr("show", "9")
	target := MediaPosts("show", "9")
	if err := client.Follow(context.Background(), source, target); err != nil {
		t.Fatalf("follow: %v", err)
	}

	if gotPath != "/feeds/media_aggr/show-9/follows" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key = %q", gotKey)
	}
	if gotTarget != "media_posts:show-9" {
		t.Fatalf("target = %q", gotTarget)
	}
}

func TestHTTPClientFollow_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Follow(context.Background(), MediaAggr("show", "1"), MediaPosts("show", "1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHTTPClientFollow_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.Follow(context.Background(), MediaAggr("show", "1"), MediaPosts("show", "1"))
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want upstream error", err)
	}
}
