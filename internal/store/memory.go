package store

import (
	"container/ring"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// MemoryStore provides thread-safe storage for alert events with a ring
// buffer of recent history and an LRU index of the latest event per
// (contact, alert id)
type MemoryStore struct {
	mu        sync.RWMutex
	events    *ring.Ring
	latest    *lru.Cache[string, model.AlertEvent]
	maxEvents int
	indexCap  int
	added     int64
}

// NewMemoryStore creates a new memory store with specified capacities
func NewMemoryStore(maxEvents, indexCap int) *MemoryStore {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	if indexCap <= 0 {
		indexCap = 1000
	}
	latest, _ := lru.New[string, model.AlertEvent](indexCap)

	return &MemoryStore{
		events:    ring.New(maxEvents),
		latest:    latest,
		maxEvents: maxEvents,
		indexCap:  indexCap,
	}
}

// Add stores an alert event, assigning an id when it has none, and returns
// the stored event
func (s *MemoryStore) Add(ev model.AlertEvent) model.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	s.events.Value = ev
	s.events = s.events.Next()
	s.latest.Add(indexKey(ev.Contact, ev.AlertID), ev)
	s.added++

	return ev
}

// Recent returns up to limit events, newest first. A limit of zero or less
// returns every stored event.
func (s *MemoryStore) Recent(limit int) []model.AlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(limit, func(model.AlertEvent) bool { return true })
}

// ByContact returns up to limit events for one contact, newest first
func (s *MemoryStore) ByContact(contact string, limit int) []model.AlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(limit, func(ev model.AlertEvent) bool { return ev.Contact == contact })
}

// Latest returns the most recent event for a (contact, alert id) pair
func (s *MemoryStore) Latest(contact, alertID string) (model.AlertEvent, bool) {
	return s.latest.Get(indexKey(contact, alertID))
}

// Clear removes all events and purges the index
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear ring buffer
	for i := 0; i < s.events.Len(); i++ {
		s.events.Value = nil
		s.events = s.events.Next()
	}

	s.latest.Purge()
}

// GetStats returns store statistics
func (s *MemoryStore) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	s.events.Do(func(value interface{}) {
		if value != nil {
			count++
		}
	})

	return map[string]interface{}{
		"total_events": count,
		"events_added": s.added,
		"max_events":   s.maxEvents,
		"index_cap":    s.indexCap,
		"index_size":   s.latest.Len(),
	}
}

// collect walks the ring backwards from the newest slot
func (s *MemoryStore) collect(limit int, keep func(model.AlertEvent) bool) []model.AlertEvent {
	var out []model.AlertEvent

	r := s.events.Prev()
	for i := 0; i < s.events.Len(); i++ {
		if ev, ok := r.Value.(model.AlertEvent); ok && keep(ev) {
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		r = r.Prev()
	}
	return out
}

func indexKey(contact, alertID string) string {
	return contact + ":" + alertID
}
