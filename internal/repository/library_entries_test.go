package repository

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mosaicmedia/catalog/internal/domain"
)

func TestLibraryEntriesRepository_UpsertTracksPreviousRating(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	media := mustCreateMedia(t, env, "tracked-show")

	first, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
		MediaID: media.ID,
		UserID:  "user1",
		Status:  domain.StatusCurrent,
		Rating:  intPtr(14),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.Inserted {
		t.Fatalf("expected first upsert to insert")
	}
	if first.PreviousRating != nil {
		t.Fatalf("previous rating = %v, want nil on insert", first.PreviousRating)
	}
	if first.Entry.Rating == nil || *first.Entry.Rating != 14 {
		t.Fatalf("stored rating = %v, want 14", first.Entry.Rating)
	}

	second, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
		MediaID:  media.ID,
		UserID:   "user1",
		Status:   domain.StatusCompleted,
		Progress: 24,
		Rating:   intPtr(18),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Inserted {
		t.Fatalf("expected update, not insert")
	}
	if second.PreviousRating == nil || *second.PreviousRating != 14 {
		t.Fatalf("previous rating = %v, want 14", second.PreviousRating)
	}
	if second.Entry.Status != domain.StatusCompleted || second.Entry.Progress != 24 {
		t.Fatalf("entry not updated: %+v", second.Entry)
	}

	cleared, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
		MediaID: media.ID,
		UserID:  "user1",
		Status:  domain.StatusDropped,
	})
	if err != nil {
		t.Fatalf("clearing upsert: %v", err)
	}
	if cleared.PreviousRating == nil || *cleared.PreviousRating != 18 {
		t.Fatalf("previous rating = %v, want 18", cleared.PreviousRating)
	}
	if cleared.Entry.Rating != nil {
		t.Fatalf("rating = %v, want nil after clearing", cleared.Entry.Rating)
	}
}

func TestLibraryEntriesRepository_GetAndList(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	media := mustCreateMedia(t, env, "list-show")

	for i := 0; i < 3; i++ {
		if _, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
			MediaID: media.ID,
			UserID:  fmt.Sprintf("user-%d", i),
			Status:  domain.StatusCurrent,
		}); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	entry, err := env.repository.LibraryEntries.Get(env.ctx, media.ID, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.UserID != "user-1" {
		t.Fatalf("entry user = %s", entry.UserID)
	}

	if _, err := env.repository.LibraryEntries.Get(env.ctx, media.ID, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing entry, got %v", err)
	}

	entries, err := env.repository.LibraryEntries.ListForMedia(env.ctx, media.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
}

func TestLibraryEntriesRepository_ConcurrentUpserts(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	media := mustCreateMedia(t, env, "busy-show")
	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		user := fmt.Sprintf("user-%d", i)
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			result, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
				MediaID: media.ID,
				UserID:  user,
				Status:  domain.StatusCurrent,
				Rating:  intPtr(10),
			})
			if err != nil {
				t.Errorf("upsert failed for %s: %v", user, err)
			} else if !result.Inserted {
				t.Errorf("expected insert for %s", user)
			}
		}(user)
	}
	wg.Wait()

	freqs, err := env.repository.Media.CalculateRatingFrequencies(env.ctx, media.ID)
	if err != nil {
		t.Fatalf("calculate after concurrent upserts: %v", err)
	}
	if freqs[10] != workers {
		t.Fatalf("bucket 10 = %d, want %d", freqs[10], workers)
	}
}

func BenchmarkLibraryEntriesUpsert(b *testing.B) {
	env := newTestEnv(b)
	defer env.cleanup()

	media := mustCreateMedia(b, env, "bench-show")
	for i := 0; i < b.N; i++ {
		user := fmt.Sprintf("bench-%d", i)
		_, err := env.repository.LibraryEntries.Upsert(env.ctx, LibraryEntryUpsertParams{
			MediaID: media.ID,
			UserID:  user,
			Status:  domain.StatusCurrent,
			Rating:  intPtr(12),
		})
		if err != nil {
			b.Fatalf("upsert: %v", err)
		}
	}
}
