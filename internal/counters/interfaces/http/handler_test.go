package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"casino-cuadres/internal/audit"
	counterapp "casino-cuadres/internal/counters/application"
	counters "casino-cuadres/internal/counters/domain"
	"casino-cuadres/internal/counters/infrastructure/memory"
	masterdata "casino-cuadres/internal/masterdata/domain"
	directorymemory "casino-cuadres/internal/masterdata/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	return newRouterWith(t, nil, nil)
}

func newRouterWith(t *testing.T, auditLogger audit.Logger, logger *zap.Logger) http.Handler {
	t.Helper()
	dir := directorymemory.NewDirectory()
	require.NoError(t, dir.PutCasino(masterdata.Casino{ID: 1, Name: "Casino Centro", Active: true}))
	require.NoError(t, dir.PutMachine(masterdata.Machine{ID: 10, CasinoID: 1, Serial: "A", Active: true}))

	svc, err := counterapp.NewService(memory.NewStore(), dir, fixedClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}, nil)
	require.NoError(t, err)
	h, err := NewHandler(svc, auditLogger, time.UTC, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRecordAndList(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/counters", `{"machine_id":10,"at":"2024-01-05 08:00:00","in":"100.5","out":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap counters.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, "100.5", snap.In.String())
	assert.Equal(t, "system", snap.CreatedBy)

	rec = do(t, router, http.MethodGet, "/counters?machine_id=10&start=2024-01-05&end=2024-01-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []counters.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = do(t, router, http.MethodGet, "/counters?casino_id=1&start=2024-01-06&end=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestRecordRejectsBadInput(t *testing.T) {
	router := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/counters", `{"machine_id":99}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/counters", `{"machine_id":10,"in":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/counters", `{"machine_id":10,"at":"yesterday"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/counters?start=2024-01-01&end=2024-01-31", "").Code)
}

func TestCorrections(t *testing.T) {
	router := newRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/counters", `{"machine_id":10,"at":"2024-01-05 08:00:00","in":1}`).Code)

	rec := do(t, router, http.MethodPost, "/counters/corrections",
		`{"casino_id":1,"date":"2024-01-05","corrections":[{"machine_id":10,"in":"7"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Updated)

	rec = do(t, router, http.MethodPost, "/counters/corrections",
		`{"casino_id":2,"date":"2024-01-05","corrections":[{"machine_id":10,"in":"7"}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingAudit struct{}

func (failingAudit) Log(context.Context, audit.Entry) error { return errors.New("audit store down") }

func TestCorrectionAuditFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	router := newRouterWith(t, failingAudit{}, zap.New(core))
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/counters", `{"machine_id":10,"at":"2024-01-05 08:00:00","in":1}`).Code)

	rec := do(t, router, http.MethodPost, "/counters/corrections",
		`{"casino_id":1,"date":"2024-01-05","corrections":[{"machine_id":10,"in":"7"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries := logs.FilterMessage("audit log failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "counters.correct", entries[0].ContextMap()["action"])
	assert.Equal(t, "audit store down", entries[0].ContextMap()["error"])
}
