package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	counters "casino-cuadres/internal/counters/domain"
	masterdata "casino-cuadres/internal/masterdata/domain"
	"casino-cuadres/internal/observability/metrics"
)

// ErrUnknownCasino is returned when a correction batch targets a missing casino.
var ErrUnknownCasino = errors.New("counters: unknown casino")

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RecordRequest is a new meter reading. A zero At means now.
type RecordRequest struct {
	MachineID int64
	At        time.Time
	In        decimal.Decimal
	Out       decimal.Decimal
	Jackpot   decimal.Decimal
	Billetero decimal.Decimal
	Actor     string
}

// Service records and corrects counter snapshots.
type Service struct {
	store     counters.Store
	directory masterdata.Directory
	clock     Clock
	logger    *zap.Logger
}

// NewService constructs a service.
func NewService(store counters.Store, directory masterdata.Directory, clock Clock, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter service: nil store")
	}
	if directory == nil {
		return nil, errors.New("counter service: nil directory")
	}
	if clock == nil {
		return nil, errors.New("counter service: nil clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, directory: directory, clock: clock, logger: logger}, nil
}

// Record stores a reading for an active machine, stamped with its casino.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*counters.Snapshot, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncCounterWrite("insert", result)
	}()

	machine, err := s.directory.GetMachine(ctx, req.MachineID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if machine == nil || !machine.Active {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: machine %d", counters.ErrInvalidMachine, req.MachineID)
	}

	now := s.clock.Now()
	at := req.At
	if at.IsZero() {
		at = now
	}
	snap := &counters.Snapshot{
		MachineID: machine.ID,
		CasinoID:  machine.CasinoID,
		At:        at.Truncate(time.Second),
		In:        req.In,
		Out:       req.Out,
		Jackpot:   req.Jackpot,
		Billetero: req.Billetero,
		CreatedAt: now,
		CreatedBy: req.Actor,
	}
	if err := snap.Validate(); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := s.store.Insert(ctx, snap); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return snap, nil
}

// CorrectBatch rewrites meter fields of a casino's snapshots on date.
// Every correction must target a machine of that casino.
func (s *Service) CorrectBatch(ctx context.Context, casinoID int64, date time.Time, corrections []counters.Correction, actor string) ([]counters.Snapshot, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncCounterWrite("correction", result)
	}()

	if len(corrections) == 0 {
		result = metrics.ResultError
		return nil, counters.ErrEmptyCorrection
	}
	casino, err := s.directory.GetCasino(ctx, casinoID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if casino == nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %d", ErrUnknownCasino, casinoID)
	}
	for _, c := range corrections {
		if err := c.Validate(); err != nil {
			result = metrics.ResultError
			return nil, err
		}
		machine, err := s.directory.GetMachine(ctx, c.MachineID)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if machine == nil || machine.CasinoID != casinoID {
			result = metrics.ResultError
			return nil, fmt.Errorf("%w: machine %d not in casino %d", counters.ErrInvalidMachine, c.MachineID, casinoID)
		}
	}

	updated, err := s.store.UpdateBatch(ctx, casinoID, date, corrections, actor, s.clock.Now())
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	s.logger.Info("counter corrections applied",
		zap.Int64("casino_id", casinoID),
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("corrections", len(corrections)),
		zap.Int("updated", len(updated)),
		zap.String("actor", actor),
	)
	return updated, nil
}

// ListMachine returns a machine's snapshots in [start, end).
func (s *Service) ListMachine(ctx context.Context, machineID int64, start, end time.Time) ([]counters.Snapshot, error) {
	return s.store.ListInRange(ctx, machineID, start, end)
}

// ListCasino returns a casino's snapshots in [start, end).
func (s *Service) ListCasino(ctx context.Context, casinoID int64, start, end time.Time) ([]counters.Snapshot, error) {
	return s.store.ListByCasinoAndDate(ctx, casinoID, start, end)
}
