package server

import "testing"

func TestFeedNewestFirstAndCapped(t *testing.T) {
	feed := NewDetectionFeed()
	for i := 0; i < FeedCapacity+5; i++ {
		feed.Record("alice", 0.9, i%2 == 0)
	}

	entries := feed.Snapshot()
	if len(entries) != FeedCapacity {
		t.Fatalf("feed holds %d entries, want %d", len(entries), FeedCapacity)
	}
	if entries[0].ID != FeedCapacity+5 {
		t.Errorf("newest entry id = %d, want %d", entries[0].ID, FeedCapacity+5)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID >= entries[i-1].ID {
			t.Fatalf("entries not newest-first at %d: %d then %d", i, entries[i-1].ID, entries[i].ID)
		}
	}
}

func TestFeedEmptySnapshotIsNonNil(t *testing.T) {
	feed := NewDetectionFeed()
	if feed.Snapshot() == nil {
		t.Error("Snapshot of empty feed is nil; must encode as []")
	}
}
