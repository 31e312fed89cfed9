package event

import (
	"testing"
	"time"
)

func TestStateStore_LastWriteWinsByCallOrder(t *testing.T) {
	s := NewStateStore()
	newer := time.Now()
	older := newer.Add(-time.Hour)

	s.Update(Input{Type: "imu.yaw", Data: 1.0, ProducerID: 1, Timestamp: newer})
	s.Update(Input{Type: "imu.yaw", Data: 2.0, ProducerID: 2, Timestamp: older})

	latest, ok := s.Latest("imu.yaw")
	if !ok {
		t.Fatal("Latest returned no entry")
	}
	if latest.ProducerID != 2 {
		t.Errorf("Latest producer = %d, want 2 (call order beats timestamp)", latest.ProducerID)
	}
}

func TestStateStore_OneEntryPerPair(t *testing.T) {
	s := NewStateStore()

	s.Update(Input{Type: "a", Data: 1, ProducerID: 1})
	s.Update(Input{Type: "a", Data: 2, ProducerID: 1})
	s.Update(Input{Type: "a", Data: 3, ProducerID: 2})
	s.Update(Input{Type: "b", Data: 4, ProducerID: 1})

	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	entry, _ := s.LatestFrom("a", 1)
	if entry.Data != 2 {
		t.Errorf("LatestFrom(a, 1) = %v, want 2", entry.Data)
	}
	if _, ok := s.LatestFrom("a", 9); ok {
		t.Error("LatestFrom unknown producer should report false")
	}
	if _, ok := s.Latest("missing"); ok {
		t.Error("Latest unknown type should report false")
	}
}

func TestStateStore_AllIsACopy(t *testing.T) {
	s := NewStateStore()
	s.Update(Input{Type: "a", Data: 1, ProducerID: 1})

	all := s.All("a")
	delete(all, 1)
	all[5] = StateEntry{Type: "a", ProducerID: 5}

	if _, ok := s.LatestFrom("a", 1); !ok {
		t.Error("mutating All() result changed the store")
	}
	if _, ok := s.LatestFrom("a", 5); ok {
		t.Error("mutating All() result changed the store")
	}
}

func TestStateStore_SnapshotIsolation(t *testing.T) {
	s := NewStateStore()
	s.Update(Input{Type: "b", Data: "old", ProducerID: 1})
	s.Update(Input{Type: "a", Data: 1, ProducerID: 1})

	snap := s.Snapshot()
	s.Update(Input{Type: "b", Data: "new", ProducerID: 1})
	s.Update(Input{Type: "c", Data: 1, ProducerID: 1})

	if got := snap.Types(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Types() = %v, want [a b]", got)
	}
	entry, _ := snap.Latest("b")
	if entry.Data != "old" {
		t.Errorf("snapshot saw later write: %v", entry.Data)
	}
	if snap.Len() != 2 {
		t.Errorf("snapshot Len() = %d, want 2", snap.Len())
	}
	if snap.Seq() != 2 {
		t.Errorf("snapshot Seq() = %d, want 2", snap.Seq())
	}
}

func TestLatestOf_TieBreaksOnProducer(t *testing.T) {
	entries := map[int]StateEntry{
		3: {ProducerID: 3, Seq: 9},
		7: {ProducerID: 7, Seq: 9},
		1: {ProducerID: 1, Seq: 4},
	}
	best, ok := latestOf(entries)
	if !ok || best.ProducerID != 7 {
		t.Errorf("latestOf = %+v, want producer 7", best)
	}
}
