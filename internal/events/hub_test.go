package events

import "testing"

func TestHubTotalsAndSnapshot(t *testing.T) {
	h := NewHub(4)

	h.Publish(Activity{Endpoint: "/callback/a", Kind: "challenge", Outcome: OutcomeAccepted})
	h.Publish(Activity{Endpoint: "/callback/a", Kind: "event", Outcome: OutcomeRejected, Reason: "signature"})
	h.Publish(Activity{Endpoint: "/callback/b", Kind: "event", Outcome: OutcomeAccepted, MsgType: "text"})

	totals := h.Totals()
	if totals.Accepted != 2 || totals.Rejected != 1 {
		t.Errorf("Totals() = %+v, want accepted=2 rejected=1", totals)
	}

	snap := h.SnapshotSince(0)
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	if snap[0].ID >= snap[1].ID || snap[1].ID >= snap[2].ID {
		t.Error("snapshot not oldest-first")
	}

	since := h.SnapshotSince(snap[1].ID)
	if len(since) != 1 || since[0].Endpoint != "/callback/b" {
		t.Errorf("SnapshotSince() = %+v, want only the last activity", since)
	}
}

func TestHubRingOverwritesOldest(t *testing.T) {
	h := NewHub(2)
	for i := 0; i < 5; i++ {
		h.Publish(Activity{Kind: "event", Outcome: OutcomeAccepted})
	}

	snap := h.SnapshotSince(0)
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if snap[0].ID != 4 || snap[1].ID != 5 {
		t.Errorf("ring kept IDs %d,%d, want 4,5", snap[0].ID, snap[1].ID)
	}
}

func TestHubSubscribe(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Activity{Endpoint: "/callback/a", Kind: "event", Outcome: OutcomeAccepted})

	select {
	case act := <-ch:
		if act.Endpoint != "/callback/a" {
			t.Errorf("endpoint = %q, want /callback/a", act.Endpoint)
		}
	default:
		t.Fatal("subscriber did not receive published activity")
	}
}
