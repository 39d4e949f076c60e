package server

import (
	"sync"
	"time"
)

// FeedCapacity keeps the recent-detections feed manageable for dashboard
// polling.
const FeedCapacity = 15

type FeedEntry struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Confidence float32   `json:"confidence"`
	IsLive     bool      `json:"is_live"`
	Timestamp  time.Time `json:"timestamp"`
}

// DetectionFeed is the in-memory recent-recognitions list served at
// /api/logs: newest first, capped, never persisted.
type DetectionFeed struct {
	mu      sync.Mutex
	nextID  int
	entries []FeedEntry
}

func NewDetectionFeed() *DetectionFeed {
	return &DetectionFeed{}
}

func (f *DetectionFeed) Record(name string, confidence float32, isLive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	entry := FeedEntry{
		ID:         f.nextID,
		Name:       name,
		Confidence: confidence,
		IsLive:     isLive,
		Timestamp:  time.Now(),
	}
	f.entries = append([]FeedEntry{entry}, f.entries...)
	if len(f.entries) > FeedCapacity {
		f.entries = f.entries[:FeedCapacity]
	}
}

// Snapshot returns the entries newest first. Always non-nil so it encodes
// as a JSON array.
func (f *DetectionFeed) Snapshot() []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]FeedEntry, len(f.entries))
	copy(out, f.entries)
	return out
}
