package reconciliation

import "errors"

var (
	// ErrNotFound is returned when a machine or casino does not exist or is inactive.
	ErrNotFound = errors.New("reconciliation: not found")
	// ErrInvalidPeriod is returned when the period start is after its end.
	ErrInvalidPeriod = errors.New("reconciliation: invalid period")
	// ErrInvalidPercentage is returned when a participation percentage is outside [0,100].
	ErrInvalidPercentage = errors.New("reconciliation: invalid percentage")
	// ErrInvalidMachineSet is returned when a participation machine list is empty or malformed.
	ErrInvalidMachineSet = errors.New("reconciliation: invalid machine set")
	// ErrNoData is returned when a machine has no counter snapshots in the period.
	ErrNoData = errors.New("reconciliation: no data")
	// ErrLockedBalance is returned when a write targets a locked balance.
	ErrLockedBalance = errors.New("reconciliation: balance locked")
	// ErrTooManyMachines is returned when a report would fan out past the configured cap.
	ErrTooManyMachines = errors.New("reconciliation: too many machines")
	// ErrNilBalance is returned when saving a nil balance.
	ErrNilBalance = errors.New("reconciliation: nil balance")
	// ErrInvalidScope is returned for an unknown balance scope.
	ErrInvalidScope = errors.New("reconciliation: invalid scope")
)

// Kind is a stable tag describing an error condition.
type Kind string

const (
	KindNone              Kind = ""
	KindNotFound          Kind = "not_found"
	KindInvalidPeriod     Kind = "invalid_period"
	KindInvalidPercentage Kind = "invalid_percentage"
	KindInvalidMachineSet Kind = "invalid_machine_set"
	KindNoData            Kind = "no_data"
	KindLockedBalance     Kind = "locked_balance"
	KindTooManyMachines   Kind = "too_many_machines"
	KindInternal          Kind = "internal"
)

// KindOf maps an error to its tag. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidPeriod):
		return KindInvalidPeriod
	case errors.Is(err, ErrInvalidPercentage):
		return KindInvalidPercentage
	case errors.Is(err, ErrInvalidMachineSet):
		return KindInvalidMachineSet
	case errors.Is(err, ErrNoData):
		return KindNoData
	case errors.Is(err, ErrLockedBalance):
		return KindLockedBalance
	case errors.Is(err, ErrTooManyMachines):
		return KindTooManyMachines
	default:
		return KindInternal
	}
}
