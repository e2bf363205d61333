package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "casino-cuadres/internal/masterdata/domain"
)

var (
	machineCols = []string{"id", "casino_id", "marca", "modelo", "serial", "asset", "denominacion", "is_active", "created_at", "updated_at"}
	casinoCols  = []string{"id", "nombre", "codigo_casino", "ciudad", "direccion", "is_active", "created_at", "updated_at"}
	created     = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
)

func TestDirectory_GetMachine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM machines WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(machineCols).
			AddRow(int64(3), int64(1), "IGT", "S2000", "SN-3", nil, "0.01", true, created, created))
	mock.ExpectQuery(`SELECT (.+) FROM machines WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(machineCols))

	d := NewDirectory(db)
	m, err := d.GetMachine(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "IGT", m.Brand)
	assert.Equal(t, "", m.Asset)
	assert.True(t, decimal.RequireFromString("0.01").Equal(m.Scale()))

	missing, err := d.GetMachine(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_ListActiveMachines(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE is_active = true AND \(\$1 = 0 OR casino_id = \$1\)`).
		WithArgs(int64(0)).
		WillReturnRows(sqlmock.NewRows(machineCols).
			AddRow(int64(1), int64(1), "IGT", "S2000", "SN-1", "A-1", "1", true, created, created).
			AddRow(int64(2), int64(2), "Novomatic", "FV", "SN-2", "A-2", "0", true, created, created))

	out, err := NewDirectory(db, WithMachinesTable("machines")).ListActiveMachines(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, decimal.NewFromInt(1).Equal(out[1].Scale()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_Casinos(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM casinos WHERE is_active = true ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(casinoCols).
			AddRow(int64(1), "Casino Centro", "CC", "Bogota", nil, true, created, created))
	mock.ExpectExec(`INSERT INTO casinos`).
		WithArgs(int64(2), "Casino Norte", "CN", "Medellin", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := NewDirectory(db)
	casinos, err := d.ListActiveCasinos(context.Background())
	require.NoError(t, err)
	require.Len(t, casinos, 1)
	assert.Equal(t, "Bogota", casinos[0].City)

	require.NoError(t, d.SaveCasino(context.Background(), masterdata.Casino{ID: 2, Name: "Casino Norte", Code: "CN", City: "Medellin", Active: true}))
	assert.Error(t, d.SaveCasino(context.Background(), masterdata.Casino{ID: 3}))
	require.NoError(t, mock.ExpectationsWereMet())
}
