package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "casino-cuadres/internal/masterdata/domain"
)

const (
	defaultMachinesTable = "machines"
	defaultCasinosTable  = "casinos"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Directory is a Postgres implementation of masterdata.Directory.
type Directory struct {
	db       DBTX
	machines string
	casinos  string
}

// DirectoryOption configures the directory.
type DirectoryOption func(*Directory)

// WithMachinesTable overrides the default machines table.
func WithMachinesTable(table string) DirectoryOption {
	return func(d *Directory) {
		if table != "" {
			d.machines = table
		}
	}
}

// WithCasinosTable overrides the default casinos table.
func WithCasinosTable(table string) DirectoryOption {
	return func(d *Directory) {
		if table != "" {
			d.casinos = table
		}
	}
}

// NewDirectory constructs a directory.
func NewDirectory(db DBTX, opts ...DirectoryOption) *Directory {
	d := &Directory{db: db, machines: defaultMachinesTable, casinos: defaultCasinosTable}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const machineColumns = "id, casino_id, marca, modelo, serial, asset, denominacion, is_active, created_at, updated_at"

const casinoColumns = "id, nombre, codigo_casino, ciudad, direccion, is_active, created_at, updated_at"

// GetMachine loads a machine by id.
func (d *Directory) GetMachine(ctx context.Context, id int64) (*masterdata.Machine, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, machineColumns, d.machines)
	m, err := scanMachine(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListActiveMachines lists active machines ordered by id.
func (d *Directory) ListActiveMachines(ctx context.Context, casinoID int64) ([]masterdata.Machine, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE is_active = true AND ($1 = 0 OR casino_id = $1)
ORDER BY id`, machineColumns, d.machines)

	rows, err := d.db.QueryContext(ctx, query, casinoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]masterdata.Machine, 0)
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetCasino loads a casino by id.
func (d *Directory) GetCasino(ctx context.Context, id int64) (*masterdata.Casino, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, casinoColumns, d.casinos)
	c, err := scanCasino(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListActiveCasinos lists active casinos ordered by id.
func (d *Directory) ListActiveCasinos(ctx context.Context) ([]masterdata.Casino, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE is_active = true ORDER BY id`, casinoColumns, d.casinos)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]masterdata.Casino, 0)
	for rows.Next() {
		c, err := scanCasino(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SaveCasino upserts a casino.
func (d *Directory) SaveCasino(ctx context.Context, casino masterdata.Casino) error {
	if d == nil || d.db == nil {
		return errors.New("directory: nil db")
	}
	if err := casino.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, nombre, codigo_casino, ciudad, direccion, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id)
DO UPDATE SET
	nombre = EXCLUDED.nombre,
	codigo_casino = EXCLUDED.codigo_casino,
	ciudad = EXCLUDED.ciudad,
	direccion = EXCLUDED.direccion,
	is_active = EXCLUDED.is_active,
	updated_at = NOW()`, d.casinos)
	_, err := d.db.ExecContext(ctx, query, casino.ID, casino.Name, casino.Code, casino.City, casino.Address, casino.Active)
	return err
}

// SaveMachine upserts a machine.
func (d *Directory) SaveMachine(ctx context.Context, machine masterdata.Machine) error {
	if d == nil || d.db == nil {
		return errors.New("directory: nil db")
	}
	if err := machine.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, casino_id, marca, modelo, serial, asset, denominacion, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id)
DO UPDATE SET
	casino_id = EXCLUDED.casino_id,
	marca = EXCLUDED.marca,
	modelo = EXCLUDED.modelo,
	serial = EXCLUDED.serial,
	asset = EXCLUDED.asset,
	denominacion = EXCLUDED.denominacion,
	is_active = EXCLUDED.is_active,
	updated_at = NOW()`, d.machines)
	_, err := d.db.ExecContext(ctx, query,
		machine.ID, machine.CasinoID, machine.Brand, machine.Model, machine.Serial, machine.Asset,
		machine.Denomination, machine.Active,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMachine(row rowScanner) (*masterdata.Machine, error) {
	var (
		m     masterdata.Machine
		asset sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.CasinoID, &m.Brand, &m.Model, &m.Serial, &asset,
		&m.Denomination, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Asset = asset.String
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func scanCasino(row rowScanner) (*masterdata.Casino, error) {
	var (
		c             masterdata.Casino
		code, address sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.Name, &code, &c.City, &address, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Code = code.String
	c.Address = address.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
