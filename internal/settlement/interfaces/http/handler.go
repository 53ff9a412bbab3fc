package http

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/observability/metrics"
	"fleet-settlement/internal/reporting"
	"fleet-settlement/internal/reporting/export"
	"fleet-settlement/internal/settlement/application"
	settlement "fleet-settlement/internal/settlement/domain"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
)

// Handler provides settlement HTTP endpoints.
type Handler struct {
	engine      *application.Engine
	reports     *reporting.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(engine *application.Engine, reports *reporting.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("settlement handler: nil engine")
	}
	if reports == nil {
		return nil, errors.New("settlement handler: nil reporting service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{engine: engine, reports: reports, auditLogger: auditLogger, logger: logger}, nil
}

// Register mounts the settlement routes on the /api/v1 router.
func (h *Handler) Register(api *mux.Router) {
	api.HandleFunc("/settlements", h.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/settlements", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/settlements/{id}", h.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/settlements/{id}/confirm", h.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/settlements/{id}/dispute", h.handleDispute).Methods(http.MethodPost)
	api.HandleFunc("/settlements/{id}/recompute", h.handleRecompute).Methods(http.MethodPost)
	api.HandleFunc("/settlements/{id}/attach-late", h.handleAttachLate).Methods(http.MethodPost)
	api.HandleFunc("/settlements/{id}/export.{format:pdf|xlsx}", h.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/exports/settlements.csv", h.handleCSV).Methods(http.MethodGet)
}

type createRequest struct {
	CompanyID     string `json:"company_id" validate:"omitempty,max=64"`
	ContractID    string `json:"contract_id" validate:"required,max=64"`
	PeriodStart   string `json:"period_start" validate:"required"`
	PeriodEnd     string `json:"period_end" validate:"required"`
	RentDeduction string `json:"rent_deduction"`
	ExtraCosts    string `json:"extra_costs"`
	Description   string `json:"description" validate:"max=500"`
}

type createResponse struct {
	reporting.SettlementView
	Warning string `json:"warning,omitempty"`
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type attachResponse struct {
	Settlement reporting.SettlementView `json:"settlement"`
	Attached   int                      `json:"attached"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := apihttp.DecodeJSON(w, r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" {
		if in.CompanyID != "" && in.CompanyID != companyID {
			apihttp.RespondError(w, auth.ErrCompanyMismatch)
			return
		}
		in.CompanyID = companyID
	}

	result, err := h.engine.CreateSettlement(r.Context(), in)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	resp := createResponse{SettlementView: h.reports.Formatter().SettlementView(result.Settlement)}
	if result.NegativePayout {
		resp.Warning = "negative payout: deductions exceed gross income"
	}
	apihttp.WriteJSON(w, http.StatusCreated, resp)
	h.logAudit(r, audit.ActionSettlementCreate, result.Settlement, map[string]any{
		"period_start": result.Settlement.PeriodStart.Format(time.RFC3339),
		"period_end":   result.Settlement.PeriodEnd.Format(time.RFC3339),
		"earnings":     len(result.Settlement.Earnings),
		"net_payout":   money.Format(result.Settlement.NetPayout),
	})
}

func (req createRequest) toInput() (application.CreateInput, error) {
	start, err := apihttp.ParseTime("period_start", req.PeriodStart)
	if err != nil {
		return application.CreateInput{}, err
	}
	end, err := apihttp.ParseTime("period_end", req.PeriodEnd)
	if err != nil {
		return application.CreateInput{}, err
	}
	rent, err := optionalAmount(req.RentDeduction)
	if err != nil {
		return application.CreateInput{}, err
	}
	extra, err := optionalAmount(req.ExtraCosts)
	if err != nil {
		return application.CreateInput{}, err
	}
	return application.CreateInput{
		CompanyID:     req.CompanyID,
		ContractID:    req.ContractID,
		PeriodStart:   start,
		PeriodEnd:     end,
		RentDeduction: rent,
		ExtraCosts:    extra,
		Description:   req.Description,
	}, nil
}

func optionalAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return money.ParseAmount(value)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	report, err := h.reports.Settlements(r.Context(), filter)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, report)
}

func parseFilter(r *http.Request) (settlement.Filter, error) {
	query := r.URL.Query()
	filter := settlement.Filter{ContractID: query.Get("contract_id")}
	var err error
	if filter.From, err = apihttp.OptionalTimeQuery(r, "from"); err != nil {
		return settlement.Filter{}, err
	}
	if filter.To, err = apihttp.OptionalTimeQuery(r, "to"); err != nil {
		return settlement.Filter{}, err
	}
	if value := query.Get("status"); value != "" {
		status, err := settlement.ParseStatus(value)
		if err != nil {
			return settlement.Filter{}, errors.Join(apihttp.ErrInvalidRequest, err)
		}
		filter.Status = status
	}
	if value := query.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			return settlement.Filter{}, errors.Join(apihttp.ErrInvalidRequest, errors.New("limit must be a non-negative integer"))
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.reports.Settlement(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := h.engine.Get(r.Context(), id)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	s, err := h.engine.Confirm(r.Context(), id, auth.IsConfirmingDriver(r.Context(), current.ContractID))
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.respondSettlement(w, s)
	h.logAudit(r, audit.ActionSettlementConfirm, s, map[string]any{
		"snapshot_hash": s.SnapshotHash,
		"net_payout":    money.Format(s.NetPayout),
	})
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := apihttp.DecodeJSON(w, r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	s, err := h.engine.Dispute(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.respondSettlement(w, s)
	h.logAudit(r, audit.ActionSettlementDispute, s, map[string]any{"reason": req.Reason})
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Recompute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.respondSettlement(w, s)
	h.logAudit(r, audit.ActionSettlementRecompute, s, map[string]any{"net_payout": money.Format(s.NetPayout)})
}

func (h *Handler) handleAttachLate(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.AttachLateEarnings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, attachResponse{
		Settlement: h.reports.Formatter().SettlementView(result.Settlement),
		Attached:   result.Attached,
	})
	h.logAudit(r, audit.ActionSettlementAttach, result.Settlement, map[string]any{
		"attached":   result.Attached,
		"net_payout": money.Format(result.Settlement.NetPayout),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	format := vars["format"]
	result := metrics.ResultError
	defer func() { metrics.ObserveExport(format, result, time.Since(start)) }()

	view, err := h.reports.Settlement(r.Context(), vars["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = export.SettlementPDF(view)
		contentType = contentTypePDF
	case "xlsx":
		data, err = export.SettlementXLSX(view)
		contentType = contentTypeXLSX
	}
	if err != nil {
		h.logger.Printf("settlement export: id=%s format=%s err=%v", view.ID, format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	result = metrics.ResultSuccess
	apihttp.WriteFile(w, contentType, "settlement-"+view.ID+"."+format, data)
	h.logExport(r, view.ID, view.ContractID, format)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultError
	defer func() { metrics.ObserveExport("csv", result, time.Since(start)) }()

	filter, err := parseFilter(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	report, err := h.reports.Settlements(r.Context(), filter)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.SettlementsCSV(&buf, report); err != nil {
		h.logger.Printf("settlement csv export: err=%v", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	result = metrics.ResultSuccess
	apihttp.WriteFile(w, contentTypeCSV, "settlements.csv", buf.Bytes())
	h.logExport(r, "", filter.ContractID, "csv")
}

func (h *Handler) respondSettlement(w http.ResponseWriter, s *settlement.Settlement) {
	apihttp.WriteJSON(w, http.StatusOK, h.reports.Formatter().SettlementView(s))
}

func (h *Handler) logAudit(r *http.Request, action string, s *settlement.Settlement, metadata map[string]any) {
	if h.auditLogger == nil || s == nil {
		return
	}
	entry := audit.FromRequest(r, action, "settlement", s.ID, s.ContractID, metadata)
	if entry.CompanyID == "" {
		entry.CompanyID = s.CompanyID
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("settlement audit: action=%s id=%s err=%v", action, s.ID, err)
	}
}

func (h *Handler) logExport(r *http.Request, id, contractID, format string) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, audit.ActionExport, "settlement", id, contractID, map[string]any{"format": format})
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("settlement audit: action=%s id=%s err=%v", audit.ActionExport, id, err)
	}
}
