// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The Subscription object and its event ring buffer.7.
//
// The ring uses a monotonic sequence base plus a modular index:
// absolute sequence numbers are the public contract (what
// Get-Notifications compares against), the index into the backing
// array is a private implementation detail.

package store

import (
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
)

// Event is one notification enqueued into a subscription.
type Event struct {
	Seq       int
	Action    string // e.g. "job-state-changed"
	Time      time.Time
	Attrs     *ipp.AttributeSet
}

// SubscriptionOwnerKind identifies what a subscription is attached to.
type SubscriptionOwnerKind int

// Owner kinds.
const (
	OwnerSystem SubscriptionOwnerKind = iota
	OwnerPrinter
	OwnerJob
)

// Subscription is a pull-mode (ippget) event subscription.
type Subscription struct {
	mu sync.RWMutex

	ID       int
	Owner    SubscriptionOwnerKind
	Printer  *Printer // nil for OwnerSystem
	Job      *Job     // non-nil only for OwnerJob

	Username string
	Events   map[string]bool
	NotifyAttributes []string
	UserData []byte
	Charset  string
	Language string

	Lease       time.Duration // 0 = infinite
	Expire      time.Time     // zero = infinite
	TimeInterval time.Duration

	ring          []Event
	ringCap       int
	firstSeq      int
	lastSeq       int // last assigned sequence number; 0 before first event
}

// NewSubscription creates a Subscription with a ring of the given
// capacity (""up to N entries").
func NewSubscription(id int, ringCap int) *Subscription {
	if ringCap <= 0 {
		ringCap = 64
	}
	return &Subscription{
		ID:      id,
		Events:  map[string]bool{},
		ringCap: ringCap,
	}
}

// Lock/Unlock/RLock/RUnlock expose the subscription's lock.
func (s *Subscription) Lock()    { s.mu.Lock() }
func (s *Subscription) Unlock()  { s.mu.Unlock() }
func (s *Subscription) RLock()   { s.mu.RLock() }
func (s *Subscription) RUnlock() { s.mu.RUnlock() }

// Matches reports whether the subscription is interested in action.
func (s *Subscription) Matches(action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Events[action] || s.Events["all"]
}

// Expired reports whether the subscription's lease has elapsed.
func (s *Subscription) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.Expire.IsZero() && now.After(s.Expire)
}

// Renew extends the subscription's lease by leaseSeconds from now (0 = infinite).
func (s *Subscription) Renew(leaseSeconds int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if leaseSeconds == 0 {
		s.Lease = 0
		s.Expire = time.Time{}
		return
	}
	s.Lease = time.Duration(leaseSeconds) * time.Second
	s.Expire = now.Add(s.Lease)
}

// AddEvent enqueues ev, assigning the next sequence number. If the
// ring is full, the oldest event is evicted and firstSeq advances, so
// `lastSeq - firstSeq + 1 == len(ring)` holds on return. Caller must
// hold the subscription's write lock.
func (s *Subscription) AddEvent(action string, attrs *ipp.AttributeSet, now time.Time) Event {
	s.lastSeq++
	ev := Event{Seq: s.lastSeq, Action: action, Time: now, Attrs: attrs}

	s.ring = append(s.ring, ev)
	if len(s.ring) > s.ringCap {
		s.ring = s.ring[1:]
	}
	if len(s.ring) > 0 {
		s.firstSeq = s.ring[0].Seq
	} else {
		s.firstSeq = s.lastSeq + 1
	}
	return ev
}

// EventsSince returns every retained event with Seq >= since. Caller
// must hold at least the subscription's read lock.
func (s *Subscription) EventsSince(since int) []Event {
	var out []Event
	for _, ev := range s.ring {
		if ev.Seq >= since {
			out = append(out, ev)
		}
	}
	return out
}

// SequenceBounds returns (firstSeq, lastSeq). Caller must hold at
// least the subscription's read lock.
func (s *Subscription) SequenceBounds() (int, int) {
	return s.firstSeq, s.lastSeq
}

// ClearOwner truncates the subscription's lease and clears its
// back-reference when the owning Printer/Job is deleted, per // §3's ownership rules. Caller must hold the subscription's write lock.
func (s *Subscription) ClearOwner() {
	s.Printer = nil
	s.Job = nil
	s.Expire = time.Now()
}
