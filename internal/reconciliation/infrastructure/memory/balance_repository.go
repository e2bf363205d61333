package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// BalanceRepository is an in-memory balance store. Every check-then-write
// runs under the write lock, which holds only for map access.
type BalanceRepository struct {
	mu     sync.RWMutex
	nextID map[reconciliation.Scope]int64
	byID   map[reconciliation.Scope]map[int64]*reconciliation.Balance
	byKey  map[string]int64
}

// NewBalanceRepository constructs a repository.
func NewBalanceRepository() *BalanceRepository {
	return &BalanceRepository{
		nextID: make(map[reconciliation.Scope]int64),
		byID: map[reconciliation.Scope]map[int64]*reconciliation.Balance{
			reconciliation.ScopeMachine: {},
			reconciliation.ScopeCasino:  {},
		},
		byKey: make(map[string]int64),
	}
}

// GetByPeriod loads the balance stored for key.
func (r *BalanceRepository) GetByPeriod(ctx context.Context, key reconciliation.Key) (*reconciliation.Balance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key.String()]
	if !ok {
		return nil, nil
	}
	return r.byID[key.Scope][id].Clone(), nil
}

// GetByID loads a balance by id.
func (r *BalanceRepository) GetByID(ctx context.Context, scope reconciliation.Scope, id int64) (*reconciliation.Balance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, ok := r.byID[scope]
	if !ok {
		return nil, reconciliation.ErrInvalidScope
	}
	return rows[id].Clone(), nil
}

// List returns balances matching filter ordered by period start then id.
func (r *BalanceRepository) List(ctx context.Context, filter reconciliation.BalanceFilter) ([]reconciliation.Balance, error) {
	_ = ctx
	r.mu.RLock()
	rows, ok := r.byID[filter.Scope]
	if !ok {
		r.mu.RUnlock()
		return nil, reconciliation.ErrInvalidScope
	}
	out := make([]reconciliation.Balance, 0)
	for _, b := range rows {
		if filter.Matches(b) {
			out = append(out, *b)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Period.Start.Equal(out[j].Period.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Period.Start.Before(out[j].Period.Start)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// Upsert inserts or overwrites an unlocked balance.
func (r *BalanceRepository) Upsert(ctx context.Context, balance *reconciliation.Balance) (*reconciliation.Balance, error) {
	_ = ctx
	if err := balance.Validate(); err != nil {
		return nil, err
	}
	key := balance.Key().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		stored := r.byID[balance.Scope][id]
		if stored.Locked {
			if balance.IsRelockOf(stored) {
				return stored.Clone(), nil
			}
			return nil, fmt.Errorf("%w: %s", reconciliation.ErrLockedBalance, key)
		}
		next := balance.Clone()
		next.ID = id
		r.byID[balance.Scope][id] = next
		return next.Clone(), nil
	}

	r.nextID[balance.Scope]++
	next := balance.Clone()
	next.ID = r.nextID[balance.Scope]
	r.byID[balance.Scope][next.ID] = next
	r.byKey[key] = next.ID
	return next.Clone(), nil
}

// Lock marks a balance locked. Locking an already locked row is a no-op.
func (r *BalanceRepository) Lock(ctx context.Context, scope reconciliation.Scope, id int64, actor string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, ok := r.byID[scope]
	if !ok {
		return false, reconciliation.ErrInvalidScope
	}
	stored := rows[id]
	if stored == nil {
		return false, nil
	}
	if stored.Locked {
		return true, nil
	}
	stored.Locked = true
	stored.LockedAt = &at
	stored.LockedBy = actor
	return true, nil
}

func page(rows []reconciliation.Balance, limit, offset int) []reconciliation.Balance {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []reconciliation.Balance{}
	}
	rows = rows[offset:]
	if limit <= 0 {
		limit = reconciliation.DefaultListLimit
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
