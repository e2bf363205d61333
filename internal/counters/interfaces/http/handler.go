package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"casino-cuadres/internal/audit"
	"casino-cuadres/internal/auth"
	counterapp "casino-cuadres/internal/counters/application"
	counters "casino-cuadres/internal/counters/domain"
)

const dateLayout = "2006-01-02"

// Handler provides counter HTTP endpoints.
type Handler struct {
	service     *counterapp.Service
	auditLogger audit.Logger
	location    *time.Location
	logger      *zap.Logger
}

// NewHandler constructs a handler. Timestamps without a zone are read in loc.
func NewHandler(service *counterapp.Service, auditLogger audit.Logger, loc *time.Location, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("counters handler: nil service")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, location: loc, logger: logger}, nil
}

// Routes registers counter routes under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/counters", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRecord)
		r.Post("/corrections", h.handleCorrect)
	})
}

type recordRequest struct {
	MachineID int64           `json:"machine_id"`
	At        string          `json:"at"`
	In        decimal.Decimal `json:"in"`
	Out       decimal.Decimal `json:"out"`
	Jackpot   decimal.Decimal `json:"jackpot"`
	Billetero decimal.Decimal `json:"billetero"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var at time.Time
	if req.At != "" {
		parsed, err := time.ParseInLocation(counters.TimestampLayout, req.At, h.location)
		if err != nil {
			http.Error(w, "invalid at", http.StatusBadRequest)
			return
		}
		at = parsed
	}
	snap, err := h.service.Record(r.Context(), counterapp.RecordRequest{
		MachineID: req.MachineID,
		At:        at,
		In:        req.In,
		Out:       req.Out,
		Jackpot:   req.Jackpot,
		Billetero: req.Billetero,
		Actor:     auth.ActorFromContext(r.Context(), "system"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(snap)
}

type correctionItem struct {
	MachineID int64            `json:"machine_id"`
	At        string           `json:"at,omitempty"`
	In        *decimal.Decimal `json:"in,omitempty"`
	Out       *decimal.Decimal `json:"out,omitempty"`
	Jackpot   *decimal.Decimal `json:"jackpot,omitempty"`
	Billetero *decimal.Decimal `json:"billetero,omitempty"`
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CasinoID    int64            `json:"casino_id"`
		Date        string           `json:"date"`
		Corrections []correctionItem `json:"corrections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.location)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	corrections := make([]counters.Correction, 0, len(req.Corrections))
	for _, item := range req.Corrections {
		c := counters.Correction{
			MachineID: item.MachineID,
			In:        item.In,
			Out:       item.Out,
			Jackpot:   item.Jackpot,
			Billetero: item.Billetero,
		}
		if item.At != "" {
			at, err := time.ParseInLocation(counters.TimestampLayout, item.At, h.location)
			if err != nil {
				http.Error(w, "invalid at", http.StatusBadRequest)
				return
			}
			c.At = &at
		}
		corrections = append(corrections, c)
	}

	actor := auth.ActorFromContext(r.Context(), "system")
	updated, err := h.service.CorrectBatch(r.Context(), req.CasinoID, date, corrections, actor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"updated":   len(updated),
		"snapshots": updated,
	})

	if h.auditLogger != nil {
		payload, _ := json.Marshal(map[string]any{"date": req.Date, "corrections": len(corrections), "updated": len(updated)})
		err := h.auditLogger.Log(r.Context(), audit.Entry{
			Actor:        actor,
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "counters.correct",
			ResourceType: "casino",
			ResourceID:   strconv.FormatInt(req.CasinoID, 10),
			Metadata:     payload,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
		if err != nil {
			h.logger.Warn("audit log failed", zap.String("action", "counters.correct"), zap.Error(err))
		}
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.ParseInLocation(dateLayout, q.Get("start"), h.location)
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := time.ParseInLocation(dateLayout, q.Get("end"), h.location)
	if err != nil || end.Before(start) {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return
	}
	end = end.AddDate(0, 0, 1)

	var list []counters.Snapshot
	switch {
	case q.Get("machine_id") != "":
		id, perr := strconv.ParseInt(strings.TrimSpace(q.Get("machine_id")), 10, 64)
		if perr != nil {
			http.Error(w, "invalid machine_id", http.StatusBadRequest)
			return
		}
		list, err = h.service.ListMachine(r.Context(), id, start, end)
	case q.Get("casino_id") != "":
		id, perr := strconv.ParseInt(strings.TrimSpace(q.Get("casino_id")), 10, 64)
		if perr != nil {
			http.Error(w, "invalid casino_id", http.StatusBadRequest)
			return
		}
		list, err = h.service.ListCasino(r.Context(), id, start, end)
	default:
		http.Error(w, "machine_id or casino_id required", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, counterapp.ErrUnknownCasino):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, counters.ErrInvalidMachine),
		errors.Is(err, counters.ErrNegativeAmount),
		errors.Is(err, counters.ErrEmptyTimestamp),
		errors.Is(err, counters.ErrEmptyCorrection):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
