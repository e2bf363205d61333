package masterdata

import (
	"context"
	"errors"
	"time"
)

// Casino is a venue hosting machines.
type Casino struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Code      string    `json:"codigo_casino"`
	City      string    `json:"ciudad"`
	Address   string    `json:"direccion"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks casino invariants.
func (c Casino) Validate() error {
	if c.ID <= 0 {
		return errors.New("casino: invalid id")
	}
	if c.Name == "" {
		return errors.New("casino: empty name")
	}
	return nil
}

// Directory is the read-only view of machines and casinos.
//
// Getters return nil, nil when the record does not exist.
type Directory interface {
	GetMachine(ctx context.Context, id int64) (*Machine, error)
	// ListActiveMachines lists active machines of casinoID, or of every casino when casinoID is 0.
	ListActiveMachines(ctx context.Context, casinoID int64) ([]Machine, error)
	GetCasino(ctx context.Context, id int64) (*Casino, error)
	ListActiveCasinos(ctx context.Context) ([]Casino, error)
}
