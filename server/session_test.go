package server

import (
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := NewStore(30*time.Minute, clock)

	s := st.Create()
	if s.ID == "" {
		t.Fatal("session id not assigned")
	}

	got, err := st.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("wrong session: %s", got.ID)
	}

	if err := st.Delete(s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.Get(s.ID); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := st.Delete(s.ID); err != ErrSessionNotFound {
		t.Fatalf("double delete should fail, got %v", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	st := NewStore(10*time.Minute, func() time.Time { return now })

	s := st.Create()

	now = now.Add(11 * time.Minute)
	if _, err := st.Get(s.ID); err != ErrSessionNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestStoreGetSlidesExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	st := NewStore(10*time.Minute, func() time.Time { return now })

	s := st.Create()

	// touch at minute 8, then read again at minute 16: still alive
	now = now.Add(8 * time.Minute)
	if _, err := st.Get(s.ID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	now = now.Add(8 * time.Minute)
	if _, err := st.Get(s.ID); err != nil {
		t.Fatalf("session should have slid forward: %v", err)
	}
}

func TestStoreCreateSweepsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	st := NewStore(10*time.Minute, func() time.Time { return now })

	st.Create()
	st.Create()
	if st.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", st.Len())
	}

	now = now.Add(time.Hour)
	st.Create()
	if st.Len() != 1 {
		t.Fatalf("expired sessions not swept: %d", st.Len())
	}
}
