package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the feed service does not know the addressed
// feed.
var ErrNotFound = errors.New("feed: not found")

// ID identifies a logical feed on the feed service. Identity is derived
// purely from the group and target, so repeated lookups for the same media
// entity always address the same feed.
type ID struct {
	Group  string
	Target string
}

func (id ID) String() string {
	return id.Group + ":" + id.Target
}

// Per-media derived feed lookups. Each media entity owns a posts feed, a
// media feed, and three aggregates built on top of them.
func MediaPosts(kind, id string) ID     { return ID{Group: "media_posts", Target: kind + "-" + id} }
func MediaMedia(kind, id string) ID     { return ID{Group: "media_media", Target: kind + "-" + id} }
func MediaAggr(kind, id string) ID      { return ID{Group: "media_aggr", Target: kind + "-" + id} }
func MediaPostsAggr(kind, id string) ID { return ID{Group: "media_posts_aggr", Target: kind + "-" + id} }
func MediaMediaAggr(kind, id string) ID { return ID{Group: "media_media_aggr", Target: kind + "-" + id} }

// Client defines the contract for the external feed service.
type Client interface {
	Follow(ctx context.Context, source, target ID) error
}

// HTTPClient implements Client over the feed service's REST API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

// NewHTTPClient constructs a new HTTP-backed feed client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

type followRequest struct {
	Target string `json:"target"`
}

// Follow makes source receive events published to target. The operation is
// idempotent on the feed service side; repeating it leaves a single edge.
func (c *HTTPClient) Follow(ctx context.Context, source, target ID) error {
	rel := &url.URL{Path: fmt.Sprintf("/feeds/%s/%s/follows", url.PathEscape(source.Group), url.PathEscape(source.Target))}
	endpoint := c.baseURL.ResolveReference(rel)

	payload, err := json.Marshal(followRequest{Target: target.String()})
	if err != nil {
		return fmt.Errorf("encode follow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		c.logger.Printf("feed: unexpected status %d following %s -> %s", resp.StatusCode, source, target)
		return fmt.Errorf("feed: upstream returned %d", resp.StatusCode)
	}
}
