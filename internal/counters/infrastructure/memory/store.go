package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	counters "casino-cuadres/internal/counters/domain"
)

// Store is an in-memory counter store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*counters.Snapshot
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{data: make(map[int64]*counters.Snapshot)}
}

// ListInRange returns a machine's snapshots in [start, end) ordered by time.
func (s *Store) ListInRange(ctx context.Context, machineID int64, start, end time.Time) ([]counters.Snapshot, error) {
	_ = ctx
	return s.filter(func(snap *counters.Snapshot) bool {
		return snap.MachineID == machineID && inRange(snap.At, start, end)
	}), nil
}

// ListByCasinoAndDate returns a casino's snapshots in [start, end).
func (s *Store) ListByCasinoAndDate(ctx context.Context, casinoID int64, start, end time.Time) ([]counters.Snapshot, error) {
	_ = ctx
	return s.filter(func(snap *counters.Snapshot) bool {
		return snap.CasinoID == casinoID && inRange(snap.At, start, end)
	}), nil
}

// Insert stores a snapshot and assigns its id.
func (s *Store) Insert(ctx context.Context, snapshot *counters.Snapshot) error {
	_ = ctx
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.nextID++
	snapshot.ID = s.nextID
	s.data[snapshot.ID] = snapshot.Clone()
	s.mu.Unlock()
	return nil
}

// UpdateBatch applies corrections to the casino's snapshots on date.
func (s *Store) UpdateBatch(ctx context.Context, casinoID int64, date time.Time, corrections []counters.Correction, actor string, at time.Time) ([]counters.Snapshot, error) {
	_ = ctx
	start, end := counters.DayRange(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDs()
	var updated []counters.Snapshot
	for _, c := range corrections {
		for _, id := range ids {
			snap := s.data[id]
			if snap.CasinoID != casinoID || !inRange(snap.At, start, end) || !c.Targets(snap) {
				continue
			}
			c.Apply(snap, actor, at)
			updated = append(updated, *snap)
		}
	}
	return updated, nil
}

func (s *Store) filter(keep func(*counters.Snapshot) bool) []counters.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]counters.Snapshot, 0)
	for _, snap := range s.data {
		if keep(snap) {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}
