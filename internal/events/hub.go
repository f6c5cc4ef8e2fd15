package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Outcome classifies how the gateway disposed of one callback request.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// Activity is one processed callback request. Reason is the generic
// rejection category ("signature", "envelope", "receiver", ...), never the
// payload, the signature value, or any other request detail.
type Activity struct {
	ID       int64     `json:"id"`
	At       time.Time `json:"at"`
	Endpoint string    `json:"endpoint"`
	Kind     string    `json:"kind"` // challenge | event
	Outcome  Outcome   `json:"outcome"`
	Reason   string    `json:"reason,omitempty"`
	MsgType  string    `json:"msg_type,omitempty"`
	Replied  bool      `json:"replied,omitempty"`
}

// Counters are the running totals served by /status.
type Counters struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// Hub is an in-memory activity feed: a ring buffer for late readers plus
// pub/sub for live ones. It backs the /status endpoint and the watch TUI.
type Hub struct {
	nextID   atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64

	mu    sync.Mutex
	ring  []Activity
	start int
	size  int

	subs      map[int]chan Activity
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Activity, capacity),
		subs: make(map[int]chan Activity),
	}
}

// Publish records one disposed request and fans it out to subscribers.
func (h *Hub) Publish(act Activity) {
	act.ID = h.nextID.Add(1)
	act.At = time.Now().UTC()

	switch act.Outcome {
	case OutcomeAccepted:
		h.accepted.Add(1)
	case OutcomeRejected:
		h.rejected.Add(1)
	}

	h.mu.Lock()
	h.pushLocked(act)
	for _, ch := range h.subs {
		// Don't let slow clients block request handling.
		select {
		case ch <- act:
		default:
		}
	}
	h.mu.Unlock()
}

// Totals returns the running accepted/rejected counters.
func (h *Hub) Totals() Counters {
	return Counters{
		Accepted: h.accepted.Load(),
		Rejected: h.rejected.Load(),
	}
}

func (h *Hub) Subscribe() (<-chan Activity, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Activity, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered activity with ID > lastID, oldest-first.
// lastID 0 returns the full ring.
func (h *Hub) SnapshotSince(lastID int64) []Activity {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Activity, 0, h.size)
	for i := 0; i < h.size; i++ {
		act := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || act.ID > lastID {
			out = append(out, act)
		}
	}
	return out
}

func (h *Hub) pushLocked(act Activity) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = act
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = act
	h.start = (h.start + 1) % capacity
}
