package feed

import (
	"context"
	"errors"
)

// Edge describes a single follow relationship in the per-media feed graph.
type Edge struct {
	Source ID
	Target ID
}

// TopologyFor returns the four follow edges wired when a media entity is
// created: the general aggregate follows both source feeds, and each
// dedicated aggregate follows its own source.
func TopologyFor(kind, id string) []Edge {
	posts := MediaPosts(kind, id)
	media := MediaMedia(kind, id)
	return []Edge{
		{Source: MediaAggr(kind, id), Target: posts},
		{Source: MediaAggr(kind, id), Target: media},
		{Source: MediaPostsAggr(kind, id), Target: posts},
		{Source: MediaMediaAggr(kind, id), Target: media},
	}
}

// Setup establishes the follow edges for a newly created media entity. Each
// edge is attempted once; wiring happens only at creation time and is never
// repeated afterward. Failures on individual edges do not stop the rest.
func Setup(ctx context.Context, client Client, kind, id string) error {
	var errs []error
	for _, edge := range TopologyFor(kind, id) {
		if err := client.Follow(ctx, edge.Source, edge.Target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
