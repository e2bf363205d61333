package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"casino-cuadres/internal/observability/metrics"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// BalanceService reads stored balances and locks them.
type BalanceService struct {
	repo   reconciliation.BalanceRepository
	clock  Clock
	logger *zap.Logger
}

// NewBalanceService constructs a service.
func NewBalanceService(repo reconciliation.BalanceRepository, clock Clock, opts ...Option) (*BalanceService, error) {
	if repo == nil {
		return nil, errors.New("balance service: nil repo")
	}
	if clock == nil {
		return nil, errors.New("balance service: nil clock")
	}
	return &BalanceService{repo: repo, clock: clock, logger: newSettings(opts).logger}, nil
}

// Get loads a balance by id.
func (s *BalanceService) Get(ctx context.Context, scope reconciliation.Scope, id int64) (*reconciliation.Balance, error) {
	if _, err := reconciliation.ParseScope(string(scope)); err != nil {
		return nil, err
	}
	balance, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, fmt.Errorf("%w: %s balance %d", reconciliation.ErrNotFound, scope, id)
	}
	return balance, nil
}

// List returns stored balances matching filter.
func (s *BalanceService) List(ctx context.Context, filter reconciliation.BalanceFilter) ([]reconciliation.Balance, error) {
	if _, err := reconciliation.ParseScope(string(filter.Scope)); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Lock freezes a stored balance. Locking twice is a no-op; a casino lock
// never touches machine balances.
func (s *BalanceService) Lock(ctx context.Context, scope reconciliation.Scope, id int64, actor string) (*reconciliation.Balance, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncBalanceLock(string(scope), result)
	}()

	if _, err := reconciliation.ParseScope(string(scope)); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	ok, err := s.repo.Lock(ctx, scope, id, actor, s.clock.Now())
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if !ok {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %s balance %d", reconciliation.ErrNotFound, scope, id)
	}
	s.logger.Info("balance locked", zap.String("scope", string(scope)), zap.Int64("balance_id", id), zap.String("actor", actor))
	return s.Get(ctx, scope, id)
}
