package server

import (
	"sync"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(0.2, 3)

	a := r.Register()
	b := r.Register()
	if a.ID == b.ID {
		t.Fatal("two sessions share an identifier")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	got, ok := r.Get(a.ID)
	if !ok || got != a {
		t.Fatalf("Get(%q) = %v, %v", a.ID, got, ok)
	}
	if got.Tracker.State().BlinkCount != 0 || got.Tracker.State().IsLive {
		t.Error("new session does not start with zeroed liveness state")
	}

	r.Remove(a.ID)
	if _, ok := r.Get(a.ID); ok {
		t.Error("session still present after Remove")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d after remove, want 1", r.Len())
	}

	// Removing an unknown id is a no-op.
	r.Remove("nope")
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry(0.2, 3)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sess := r.Register()
				r.Remove(sess.ID)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d after churn, want 0", r.Len())
	}
}
