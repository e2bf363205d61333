package memory

import (
	"context"
	"sort"
	"sync"

	masterdata "casino-cuadres/internal/masterdata/domain"
)

// Directory is an in-memory machine and casino directory.
type Directory struct {
	mu       sync.RWMutex
	machines map[int64]masterdata.Machine
	casinos  map[int64]masterdata.Casino
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		machines: make(map[int64]masterdata.Machine),
		casinos:  make(map[int64]masterdata.Casino),
	}
}

// PutCasino adds or replaces a casino.
func (d *Directory) PutCasino(casino masterdata.Casino) error {
	if err := casino.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.casinos[casino.ID] = casino
	d.mu.Unlock()
	return nil
}

// PutMachine adds or replaces a machine.
func (d *Directory) PutMachine(machine masterdata.Machine) error {
	if err := machine.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.machines[machine.ID] = machine
	d.mu.Unlock()
	return nil
}

// GetMachine loads a machine by id.
func (d *Directory) GetMachine(ctx context.Context, id int64) (*masterdata.Machine, error) {
	_ = ctx
	d.mu.RLock()
	m, ok := d.machines[id]
	d.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListActiveMachines lists active machines ordered by id.
func (d *Directory) ListActiveMachines(ctx context.Context, casinoID int64) ([]masterdata.Machine, error) {
	_ = ctx
	d.mu.RLock()
	out := make([]masterdata.Machine, 0)
	for _, m := range d.machines {
		if !m.Active {
			continue
		}
		if casinoID > 0 && m.CasinoID != casinoID {
			continue
		}
		out = append(out, m)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCasino loads a casino by id.
func (d *Directory) GetCasino(ctx context.Context, id int64) (*masterdata.Casino, error) {
	_ = ctx
	d.mu.RLock()
	c, ok := d.casinos[id]
	d.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListActiveCasinos lists active casinos ordered by id.
func (d *Directory) ListActiveCasinos(ctx context.Context) ([]masterdata.Casino, error) {
	_ = ctx
	d.mu.RLock()
	out := make([]masterdata.Casino, 0)
	for _, c := range d.casinos {
		if c.Active {
			out = append(out, c)
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
