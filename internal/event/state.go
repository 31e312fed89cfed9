package event

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// StateEntry is the latest known value for one (type, producer) pair.
// Entries are replaced whole on every emit and never mutated.
type StateEntry struct {
	Type       string
	ProducerID int
	Data       any
	Timestamp  time.Time

	// Seq is the store-wide update counter at the time this entry was
	// written. It orders entries by call order, independent of Timestamp.
	Seq uint64
}

// StateStore caches the latest event per (type, producer).
// Last write wins by call order, not by timestamp value.
// It is safe for concurrent use.
type StateStore struct {
	mu      sync.RWMutex
	entries map[string]map[int]StateEntry
	seq     uint64
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		entries: make(map[string]map[int]StateEntry),
	}
}

// Update records in as the latest value for its (type, producer) and
// returns the stored entry.
func (s *StateStore) Update(in Input) StateEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry := StateEntry{
		Type:       in.Type,
		ProducerID: in.ProducerID,
		Data:       in.Data,
		Timestamp:  in.Timestamp,
		Seq:        s.seq,
	}

	byProducer := s.entries[in.Type]
	if byProducer == nil {
		byProducer = make(map[int]StateEntry)
		s.entries[in.Type] = byProducer
	}
	byProducer[in.ProducerID] = entry
	return entry
}

// Latest returns the most recently written entry for eventType across all
// producers.
func (s *StateStore) Latest(eventType string) (StateEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestOf(s.entries[eventType])
}

// LatestFrom returns the entry for an exact (type, producer) pair.
func (s *StateStore) LatestFrom(eventType string, producerID int) (StateEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[eventType][producerID]
	return entry, ok
}

// All returns a copy of every producer's entry for eventType. The returned
// map is owned by the caller.
func (s *StateStore) All(eventType string) map[int]StateEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.entries[eventType])
}

// Len returns the number of (type, producer) entries held.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byProducer := range s.entries {
		n += len(byProducer)
	}
	return n
}

// Snapshot returns a copy of the whole store that can be iterated without
// holding the store lock. Payloads are shared, not cloned: the bus treats
// them as immutable.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make(map[string]map[int]StateEntry, len(s.entries))
	for eventType, byProducer := range s.entries {
		entries[eventType] = maps.Clone(byProducer)
	}
	return Snapshot{entries: entries, seq: s.seq}
}

// latestOf picks the entry with the highest Seq. Seq is strictly increasing
// so ties cannot occur between entries of one store; the producer id
// comparison keeps the choice deterministic for hand-built maps.
func latestOf(byProducer map[int]StateEntry) (StateEntry, bool) {
	var (
		best  StateEntry
		found bool
	)
	for _, entry := range byProducer {
		if !found || entry.Seq > best.Seq || (entry.Seq == best.Seq && entry.ProducerID > best.ProducerID) {
			best = entry
			found = true
		}
	}
	return best, found
}

// Snapshot is an immutable point-in-time view of a StateStore.
type Snapshot struct {
	entries map[string]map[int]StateEntry
	seq     uint64
}

// Seq returns the store's update counter at the time of the snapshot.
func (s Snapshot) Seq() uint64 {
	return s.seq
}

// Types returns the event types present, sorted.
func (s Snapshot) Types() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// Latest returns the most recent entry for eventType in the snapshot.
func (s Snapshot) Latest(eventType string) (StateEntry, bool) {
	return latestOf(s.entries[eventType])
}

// All returns a copy of every producer's entry for eventType.
func (s Snapshot) All(eventType string) map[int]StateEntry {
	return maps.Clone(s.entries[eventType])
}

// Len returns the number of (type, producer) entries in the snapshot.
func (s Snapshot) Len() int {
	n := 0
	for _, byProducer := range s.entries {
		n += len(byProducer)
	}
	return n
}
