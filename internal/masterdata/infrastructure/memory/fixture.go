package memory

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	masterdata "casino-cuadres/internal/masterdata/domain"
)

type fixtureCasino struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"nombre"`
	Code    string `yaml:"codigo_casino"`
	City    string `yaml:"ciudad"`
	Address string `yaml:"direccion"`
	Active  *bool  `yaml:"is_active"`
}

type fixtureMachine struct {
	ID           int64  `yaml:"id"`
	CasinoID     int64  `yaml:"casino_id"`
	Brand        string `yaml:"marca"`
	Model        string `yaml:"modelo"`
	Serial       string `yaml:"serial"`
	Asset        string `yaml:"asset"`
	Denomination string `yaml:"denominacion"`
	Active       *bool  `yaml:"is_active"`
}

// Fixture is a yaml list of casinos and machines. Records are active unless is_active is false.
type Fixture struct {
	Casinos  []masterdata.Casino
	Machines []masterdata.Machine
}

// ParseFixture decodes a yaml fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var raw struct {
		Casinos  []fixtureCasino  `yaml:"casinos"`
		Machines []fixtureMachine `yaml:"machines"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("masterdata fixture: %w", err)
	}
	out := &Fixture{}
	for _, c := range raw.Casinos {
		out.Casinos = append(out.Casinos, masterdata.Casino{
			ID:      c.ID,
			Name:    c.Name,
			Code:    c.Code,
			City:    c.City,
			Address: c.Address,
			Active:  c.Active == nil || *c.Active,
		})
	}
	for _, m := range raw.Machines {
		denomination := decimal.NewFromInt(1)
		if m.Denomination != "" {
			d, err := decimal.NewFromString(m.Denomination)
			if err != nil {
				return nil, fmt.Errorf("masterdata fixture: machine %d denominacion: %w", m.ID, err)
			}
			denomination = d
		}
		out.Machines = append(out.Machines, masterdata.Machine{
			ID:           m.ID,
			CasinoID:     m.CasinoID,
			Brand:        m.Brand,
			Model:        m.Model,
			Serial:       m.Serial,
			Asset:        m.Asset,
			Denomination: denomination,
			Active:       m.Active == nil || *m.Active,
		})
	}
	return out, nil
}

// LoadFile builds a directory from a yaml fixture file.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fixture, err := ParseFixture(data)
	if err != nil {
		return nil, err
	}
	d := NewDirectory()
	for _, c := range fixture.Casinos {
		if err := d.PutCasino(c); err != nil {
			return nil, fmt.Errorf("masterdata fixture: casino %d: %w", c.ID, err)
		}
	}
	for _, m := range fixture.Machines {
		if err := d.PutMachine(m); err != nil {
			return nil, fmt.Errorf("masterdata fixture: machine %d: %w", m.ID, err)
		}
	}
	return d, nil
}
