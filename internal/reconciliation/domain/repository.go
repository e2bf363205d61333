package reconciliation

import (
	"context"
	"time"
)

// BalanceRepository persists balances and enforces the lock invariant.
//
// Upsert is an atomic check-then-write per key: it inserts a new row or
// overwrites an unlocked one, and fails with ErrLockedBalance when the stored
// row is locked, unless the incoming row re-locks identical figures.
type BalanceRepository interface {
	GetByPeriod(ctx context.Context, key Key) (*Balance, error)
	GetByID(ctx context.Context, scope Scope, id int64) (*Balance, error)
	List(ctx context.Context, filter BalanceFilter) ([]Balance, error)
	Upsert(ctx context.Context, balance *Balance) (*Balance, error)
	// Lock marks a stored balance locked. It returns false when no row has id.
	Lock(ctx context.Context, scope Scope, id int64, actor string, at time.Time) (bool, error)
}
