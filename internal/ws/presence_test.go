package ws

import (
	"testing"
	"time"
)

func TestPresenceTransitionEdges(t *testing.T) {
	p := NewPresenceTracker()

	t.Run("OnlineOnlyOnFirstConnection", func(t *testing.T) {
		if _, edged := p.Connect("u1"); !edged {
			t.Error("first connection should produce an online transition")
		}
		if _, edged := p.Connect("u1"); edged {
			t.Error("second connection should not produce a transition")
		}
	})

	t.Run("OfflineOnlyOnLastDisconnection", func(t *testing.T) {
		if _, edged, err := p.Disconnect("u1"); err != nil || edged {
			t.Errorf("expected silent decrement, edged=%v err=%v", edged, err)
		}
		transition, edged, err := p.Disconnect("u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !edged {
			t.Fatal("last disconnection should produce an offline transition")
		}
		if transition.Online {
			t.Error("transition should be offline")
		}
		if transition.LastSeenAt.IsZero() {
			t.Error("offline transition should carry lastSeenAt")
		}
	})

	t.Run("NegativeCountIsInvariantViolation", func(t *testing.T) {
		if _, _, err := p.Disconnect("u1"); err == nil {
			t.Error("decrementing at zero should report an invariant violation")
		}
		if _, _, err := p.Disconnect("never-connected"); err == nil {
			t.Error("decrementing an unknown user should report an invariant violation")
		}
	})
}

func TestPresenceOnlineEventsMatchEdges(t *testing.T) {
	p := NewPresenceTracker()

	// Arbitrary interleaving: online events must equal 0->1 edges, never the
	// number of Connect calls.
	sequence := []bool{true, true, false, true, false, false, true, false}
	onlineEvents, edges, count := 0, 0, 0
	for _, connect := range sequence {
		if connect {
			if count == 0 {
				edges++
			}
			count++
			if _, edged := p.Connect("u"); edged {
				onlineEvents++
			}
		} else {
			count--
			if _, _, err := p.Disconnect("u"); err != nil {
				t.Fatalf("unexpected invariant violation: %v", err)
			}
		}
	}
	if onlineEvents != edges {
		t.Errorf("expected %d online events, got %d", edges, onlineEvents)
	}
}

func TestPresenceStatus(t *testing.T) {
	p := NewPresenceTracker()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	if online, _ := p.Status("u1"); online {
		t.Error("unknown user should be offline")
	}

	p.Connect("u1")
	if online, _ := p.Status("u1"); !online {
		t.Error("connected user should be online")
	}

	p.Disconnect("u1")
	online, lastSeen := p.Status("u1")
	if online {
		t.Error("user should be offline after last disconnect")
	}
	if !lastSeen.Equal(fixed) {
		t.Errorf("lastSeen = %v, want %v", lastSeen, fixed)
	}
}
