package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"casino-cuadres/internal/audit"
	"casino-cuadres/internal/auth"
	"casino-cuadres/internal/observability/metrics"
	reconapp "casino-cuadres/internal/reconciliation/application"
	reconciliation "casino-cuadres/internal/reconciliation/domain"
)

// systemActor is recorded when a request carries no authenticated subject.
const systemActor = "system"

// Handler serves reconciliation, report and balance APIs.
type Handler struct {
	machines    *reconapp.MachineReconciler
	casinos     *reconapp.CasinoReconciler
	reports     *reconapp.ReportComposer
	balances    *reconapp.BalanceService
	auditLogger audit.Logger
	location    *time.Location
	logger      *zap.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAuditLogger records generate, lock and export actions.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLocation sets the zone request dates are parsed in.
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *Handler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(machines *reconapp.MachineReconciler, casinos *reconapp.CasinoReconciler, reports *reconapp.ReportComposer, balances *reconapp.BalanceService, opts ...HandlerOption) (*Handler, error) {
	if machines == nil {
		return nil, errors.New("reconciliation handler: nil machine reconciler")
	}
	if casinos == nil {
		return nil, errors.New("reconciliation handler: nil casino reconciler")
	}
	if reports == nil {
		return nil, errors.New("reconciliation handler: nil report composer")
	}
	if balances == nil {
		return nil, errors.New("reconciliation handler: nil balance service")
	}
	h := &Handler{
		machines: machines,
		casinos:  casinos,
		reports:  reports,
		balances: balances,
		location: time.UTC,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes registers the handler under r, which is expected to be mounted at /api/v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/reconciliations", func(r chi.Router) {
		r.Post("/machines", h.handleReconcileMachine)
		r.Post("/casinos", h.handleReconcileCasino)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/consolidated", h.handleConsolidated)
		r.Get("/consolidated/export.pdf", h.exportConsolidated(formatPDF))
		r.Get("/consolidated/export.xlsx", h.exportConsolidated(formatXLSX))
		r.Get("/filtered", h.handleFiltered)
		r.Get("/filtered/export.pdf", h.exportFiltered(formatPDF))
		r.Get("/filtered/export.xlsx", h.exportFiltered(formatXLSX))
		r.Get("/filtered/export.csv", h.exportFiltered(formatCSV))
		r.Post("/participation", h.handleParticipation)
		r.Post("/participation/export.pdf", h.exportParticipation(formatPDF))
		r.Post("/participation/export.xlsx", h.exportParticipation(formatXLSX))
	})
	r.Route("/balances/{scope}", func(r chi.Router) {
		r.Get("/", h.handleListBalances)
		r.Get("/{id}", h.handleGetBalance)
		r.Post("/{id}/lock", h.handleLockBalance)
	})
}

type reconcileRequest struct {
	MachineID int64  `json:"machine_id"`
	CasinoID  int64  `json:"casino_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Persist   bool   `json:"persist"`
	Lock      bool   `json:"lock"`
}

func (h *Handler) handleReconcileMachine(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid json")
		return
	}
	period, err := reconciliation.ParsePeriod(req.Start, req.End, h.location)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	res, err := h.machines.Reconcile(r.Context(), reconapp.MachineRequest{
		MachineID: req.MachineID,
		Period:    period,
		Persist:   req.Persist || req.Lock,
		Lock:      req.Lock,
		Actor:     actor(r),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
	if req.Persist || req.Lock {
		h.logAudit(r, "balance.generate", "machine_balance", strconv.FormatInt(res.Balance.ID, 10), map[string]any{
			"machine_id": req.MachineID,
			"period":     period.String(),
			"locked":     res.Balance.Locked,
		})
	}
}

func (h *Handler) handleReconcileCasino(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid json")
		return
	}
	period, err := reconciliation.ParsePeriod(req.Start, req.End, h.location)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	res, err := h.casinos.ReconcileCasino(r.Context(), reconapp.CasinoRequest{
		CasinoID: req.CasinoID,
		Period:   period,
		Persist:  req.Persist || req.Lock,
		Lock:     req.Lock,
		Actor:    actor(r),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
	if req.Persist || req.Lock {
		h.logAudit(r, "balance.generate", "casino_balance", strconv.FormatInt(res.Balance.ID, 10), map[string]any{
			"casino_id": req.CasinoID,
			"period":    period.String(),
			"locked":    res.Balance.Locked,
			"machines":  len(res.Machines),
		})
	}
}

func (h *Handler) consolidated(r *http.Request) (*reconapp.ConsolidatedReport, error) {
	q := r.URL.Query()
	casinoID, err := parseID(q.Get("casino_id"))
	if err != nil {
		return nil, err
	}
	period, err := reconciliation.ParsePeriod(q.Get("start"), q.Get("end"), h.location)
	if err != nil {
		return nil, err
	}
	return h.reports.ConsolidatedReport(r.Context(), casinoID, period, actor(r))
}

func (h *Handler) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	report, err := h.consolidated(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) filtered(r *http.Request) (*reconapp.FilteredReport, error) {
	q := r.URL.Query()
	period, err := reconciliation.ParsePeriod(q.Get("start"), q.Get("end"), h.location)
	if err != nil {
		return nil, err
	}
	shape, err := reconapp.ParseReportShape(q.Get("tipo"))
	if err != nil {
		return nil, badRequest(err)
	}
	filters := reconapp.Filters{
		Brand: q.Get("marca"),
		Model: q.Get("modelo"),
		City:  q.Get("ciudad"),
	}
	if raw := q.Get("casino_id"); raw != "" {
		if filters.CasinoID, err = parseID(raw); err != nil {
			return nil, err
		}
	}
	return h.reports.FilteredReport(r.Context(), period, filters, shape)
}

func (h *Handler) handleFiltered(w http.ResponseWriter, r *http.Request) {
	report, err := h.filtered(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type participationRequest struct {
	MachineIDs []int64          `json:"machine_ids"`
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Percentage *decimal.Decimal `json:"porcentaje_participacion"`
}

func (h *Handler) participation(r *http.Request) (*reconapp.ParticipationReport, error) {
	var req participationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequest(errors.New("invalid json"))
	}
	if req.Percentage == nil {
		return nil, fmt.Errorf("%w: missing", reconciliation.ErrInvalidPercentage)
	}
	period, err := reconciliation.ParsePeriod(req.Start, req.End, h.location)
	if err != nil {
		return nil, err
	}
	return h.reports.ParticipationReport(r.Context(), reconapp.ParticipationRequest{
		MachineIDs: req.MachineIDs,
		Period:     period,
		Percentage: *req.Percentage,
		Actor:      actor(r),
	})
}

func (h *Handler) handleParticipation(w http.ResponseWriter, r *http.Request) {
	report, err := h.participation(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	scope, err := reconciliation.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	filter, err := parseBalanceFilter(r, scope, h.location)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	list, err := h.balances.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	scope, id, err := balanceRef(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	balance, err := h.balances.Get(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) handleLockBalance(w http.ResponseWriter, r *http.Request) {
	scope, id, err := balanceRef(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	balance, err := h.balances.Lock(r.Context(), scope, id, actor(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
	h.logAudit(r, "balance.lock", string(scope)+"_balance", strconv.FormatInt(id, 10), map[string]any{
		"period":    balance.Period.String(),
		"locked_by": balance.LockedBy,
	})
}

type exportFormat string

const (
	formatPDF  exportFormat = "pdf"
	formatXLSX exportFormat = "xlsx"
	formatCSV  exportFormat = "csv"
)

func (f exportFormat) contentType() string {
	switch f {
	case formatPDF:
		return contentTypePDF
	case formatXLSX:
		return contentTypeXLSX
	default:
		return contentTypeCSV
	}
}

func (h *Handler) exportConsolidated(format exportFormat) http.HandlerFunc {
	return h.export(format, reconapp.ReportKindConsolidated, func(r *http.Request) (string, []byte, error) {
		report, err := h.consolidated(r)
		if err != nil {
			return "", nil, err
		}
		name := fmt.Sprintf("consolidated-%d-%s", report.CasinoID, report.Period.Key())
		if format == formatPDF {
			data, err := BuildConsolidatedPDF(report)
			return name, data, err
		}
		data, err := BuildConsolidatedXLSX(report)
		return name, data, err
	})
}

func (h *Handler) exportFiltered(format exportFormat) http.HandlerFunc {
	return h.export(format, reconapp.ReportKindFiltered, func(r *http.Request) (string, []byte, error) {
		report, err := h.filtered(r)
		if err != nil {
			return "", nil, err
		}
		name := "filtered-" + report.Period.Key()
		var data []byte
		switch format {
		case formatPDF:
			data, err = BuildFilteredPDF(report)
		case formatXLSX:
			data, err = BuildFilteredXLSX(report)
		default:
			data, err = BuildFilteredCSV(report)
		}
		return name, data, err
	})
}

func (h *Handler) exportParticipation(format exportFormat) http.HandlerFunc {
	return h.export(format, reconapp.ReportKindParticipation, func(r *http.Request) (string, []byte, error) {
		report, err := h.participation(r)
		if err != nil {
			return "", nil, err
		}
		name := "participation-" + report.Period.Key()
		if format == formatPDF {
			data, err := BuildParticipationPDF(report)
			return name, data, err
		}
		data, err := BuildParticipationXLSX(report)
		return name, data, err
	})
}

func (h *Handler) export(format exportFormat, kind string, build func(*http.Request) (string, []byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		result := metrics.ResultSuccess
		defer func() {
			metrics.ObserveExport(string(format), result, time.Since(start))
		}()

		name, data, err := build(r)
		if err != nil {
			result = metrics.ResultError
			respondServiceError(w, err)
			return
		}
		exportID := uuid.NewString()
		w.Header().Set("Content-Type", format.contentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
		w.Header().Set("X-Export-ID", exportID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		h.logAudit(r, "report.export", kind+"_report", exportID, map[string]any{
			"format": string(format),
			"file":   name,
		})
	}
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        actor(r),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func actor(r *http.Request) string {
	return auth.ActorFromContext(r.Context(), systemActor)
}

func balanceRef(r *http.Request) (reconciliation.Scope, int64, error) {
	scope, err := reconciliation.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		return "", 0, err
	}
	return scope, id, nil
}

func parseBalanceFilter(r *http.Request, scope reconciliation.Scope, loc *time.Location) (reconciliation.BalanceFilter, error) {
	q := r.URL.Query()
	filter := reconciliation.BalanceFilter{Scope: scope}
	var err error
	if raw := q.Get("subject_id"); raw != "" {
		if filter.SubjectID, err = parseID(raw); err != nil {
			return filter, err
		}
	}
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.ParseInLocation(reconciliation.DateLayout, raw, loc); err != nil {
			return filter, fmt.Errorf("%w: from %q", reconciliation.ErrInvalidPeriod, raw)
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.ParseInLocation(reconciliation.DateLayout, raw, loc); err != nil {
			return filter, fmt.Errorf("%w: to %q", reconciliation.ErrInvalidPeriod, raw)
		}
	}
	if filter.Limit, err = parseCount(q.Get("limit")); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseCount(q.Get("offset")); err != nil {
		return filter, err
	}
	return filter, nil
}

// errBadRequest marks input errors that have no domain sentinel.
var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(fmt.Errorf("invalid count %q", raw))
	}
	return n, nil
}

type errorBody struct {
	Error string              `json:"error"`
	Kind  reconciliation.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind reconciliation.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errBadRequest) || errors.Is(err, reconciliation.ErrInvalidScope) {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	kind := reconciliation.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case reconciliation.KindNotFound:
		status = http.StatusNotFound
	case reconciliation.KindInvalidPeriod, reconciliation.KindInvalidPercentage, reconciliation.KindInvalidMachineSet, reconciliation.KindTooManyMachines:
		status = http.StatusBadRequest
	case reconciliation.KindLockedBalance:
		status = http.StatusConflict
	case reconciliation.KindNoData:
		status = http.StatusUnprocessableEntity
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, kind, msg)
}
