package session

import (
	"context"
	"sync"
	"time"

	"github.com/yaadak/yaadak/internal/domain/entities"
)

const (
	pendingTTL   = 10 * time.Minute
	rateWindow   = time.Hour
	reapInterval = time.Minute
)

// Pending is a parsed draft waiting for the user's save/discard decision.
type Pending struct {
	Drafts  []*entities.Reminder
	Created time.Time
}

// editState marks a user who asked to edit a reminder and owes us the
// follow-up utterance.
type editState struct {
	ReminderID int64
	Created    time.Time
}

type rateState struct {
	Count       int
	WindowStart time.Time
}

// Store keeps the per-user conversational state: pending confirmations,
// edits in progress and rate-limit windows. Everything is in memory and
// lost on restart, which is acceptable for conversational scratch state.
type Store struct {
	mu       sync.Mutex
	pending  map[int64]Pending
	edits    map[int64]editState
	awaitTZ  map[int64]time.Time
	rates    map[int64]rateState
	maxPerHr int
	now      func() time.Time
}

func NewStore(maxPerHour int) *Store {
	return &Store{
		pending:  make(map[int64]Pending),
		edits:    make(map[int64]editState),
		awaitTZ:  make(map[int64]time.Time),
		rates:    make(map[int64]rateState),
		maxPerHr: maxPerHour,
		now:      time.Now,
	}
}

// PutPending parks drafts until the user confirms or the TTL expires.
func (s *Store) PutPending(userID int64, drafts []*entities.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = Pending{Drafts: drafts, Created: s.now()}
}

// TakePending removes and returns the user's pending drafts, if any.
func (s *Store) TakePending(userID int64) ([]*entities.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return nil, false
	}
	delete(s.pending, userID)
	if s.now().Sub(p.Created) > pendingTTL {
		return nil, false
	}
	return p.Drafts, true
}

// StartEdit marks the user's next message as an edit of the reminder.
func (s *Store) StartEdit(userID, reminderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[userID] = editState{ReminderID: reminderID, Created: s.now()}
}

// TakeEdit removes and returns the reminder id under edit, if any.
func (s *Store) TakeEdit(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edits[userID]
	if !ok {
		return 0, false
	}
	delete(s.edits, userID)
	if s.now().Sub(e.Created) > pendingTTL {
		return 0, false
	}
	return e.ReminderID, true
}

// StartTimezone marks the user's next message as timezone input.
func (s *Store) StartTimezone(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaitTZ[userID] = s.now()
}

// TakeTimezone reports and clears the awaiting-timezone mark.
func (s *Store) TakeTimezone(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	started, ok := s.awaitTZ[userID]
	if !ok {
		return false
	}
	delete(s.awaitTZ, userID)
	return s.now().Sub(started) <= pendingTTL
}

// Allow counts one parse request against the user's hourly window and
// reports whether it is within the limit.
func (s *Store) Allow(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := s.rates[userID]
	if now.Sub(r.WindowStart) > rateWindow {
		r = rateState{WindowStart: now}
	}
	r.Count++
	s.rates[userID] = r

	return r.Count <= s.maxPerHr
}

// Run reaps expired entries until the context is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

func (s *Store) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, p := range s.pending {
		if now.Sub(p.Created) > pendingTTL {
			delete(s.pending, id)
		}
	}
	for id, e := range s.edits {
		if now.Sub(e.Created) > pendingTTL {
			delete(s.edits, id)
		}
	}
	for id, started := range s.awaitTZ {
		if now.Sub(started) > pendingTTL {
			delete(s.awaitTZ, id)
		}
	}
	for id, r := range s.rates {
		if now.Sub(r.WindowStart) > rateWindow {
			delete(s.rates, id)
		}
	}
}
