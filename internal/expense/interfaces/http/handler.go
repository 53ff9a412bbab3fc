package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
	expenseapp "fleet-settlement/internal/expense/application"
	expense "fleet-settlement/internal/expense/domain"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/observability/metrics"
	"fleet-settlement/internal/reporting"
	"fleet-settlement/internal/reporting/export"
)

// Handler provides expense HTTP endpoints.
type Handler struct {
	service     *expenseapp.Service
	reports     *reporting.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *expenseapp.Service, reports *reporting.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("expense handler: nil service")
	}
	if reports == nil {
		return nil, errors.New("expense handler: nil reporting service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, reports: reports, auditLogger: auditLogger, logger: logger}, nil
}

// Register mounts the expense routes on the /api/v1 router.
func (h *Handler) Register(api *mux.Router) {
	api.HandleFunc("/expenses", h.handleRecord).Methods(http.MethodPost)
	api.HandleFunc("/expenses", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/expenses/summary", h.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/expenses/summary/export.{format:pdf|xlsx}", h.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id}", h.handleGet).Methods(http.MethodGet)
}

type recordRequest struct {
	CompanyID   string `json:"company_id" validate:"omitempty,max=64"`
	CarID       string `json:"car_id" validate:"omitempty,max=64"`
	Type        string `json:"type" validate:"required"`
	Date        string `json:"date" validate:"required"`
	NetAmount   string `json:"net_amount" validate:"required"`
	VATAmount   string `json:"vat_amount"`
	GrossAmount string `json:"gross_amount"`
	Description string `json:"description" validate:"max=500"`
}

// toInput parses amounts. A missing VAT amount is zero and a missing gross
// amount is net plus VAT.
func (req recordRequest) toInput() (expenseapp.RecordInput, error) {
	kind, err := expense.ParseType(req.Type)
	if err != nil {
		return expenseapp.RecordInput{}, err
	}
	date, err := apihttp.ParseTime("date", req.Date)
	if err != nil {
		return expenseapp.RecordInput{}, err
	}
	net, err := money.ParseAmount(req.NetAmount)
	if err != nil {
		return expenseapp.RecordInput{}, err
	}
	vat := decimal.Zero
	if req.VATAmount != "" {
		if vat, err = money.ParseAmount(req.VATAmount); err != nil {
			return expenseapp.RecordInput{}, err
		}
	}
	gross := money.Sum(net, vat)
	if req.GrossAmount != "" {
		if gross, err = money.ParseAmount(req.GrossAmount); err != nil {
			return expenseapp.RecordInput{}, err
		}
	}
	return expenseapp.RecordInput{
		CompanyID:   req.CompanyID,
		CarID:       req.CarID,
		Type:        kind,
		Date:        date,
		NetAmount:   net,
		VATAmount:   vat,
		GrossAmount: gross,
		Description: req.Description,
	}, nil
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := apihttp.DecodeJSON(w, r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	record, err := h.service.Record(r.Context(), in)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, record)

	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, audit.ActionExpenseRecord, "expense", record.ID, "", map[string]any{
		"type":   record.Type,
		"car_id": record.CarID,
		"gross":  money.Format(record.GrossAmount),
	})
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("expense audit: id=%s err=%v", record.ID, err)
	}
}

type rangeQuery struct {
	companyID string
	carID     *string
	from      time.Time
	to        time.Time
}

func parseRange(r *http.Request) (rangeQuery, error) {
	from, err := apihttp.TimeQuery(r, "from")
	if err != nil {
		return rangeQuery{}, err
	}
	to, err := apihttp.TimeQuery(r, "to")
	if err != nil {
		return rangeQuery{}, err
	}
	return rangeQuery{
		companyID: auth.CompanyIDFromContext(r.Context()),
		carID:     apihttp.OptionalQuery(r, "car_id"),
		from:      from,
		to:        to,
	}, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	records, err := h.service.List(r.Context(), q.companyID, q.carID, q.from, q.to)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if records == nil {
		records = []expense.Record{}
	}
	apihttp.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	report, err := h.reports.Expenses(r.Context(), q.companyID, q.carID, q.from, q.to)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format := mux.Vars(r)["format"]
	result := metrics.ResultError
	defer func() { metrics.ObserveExport("expense_"+format, result, time.Since(start)) }()

	q, err := parseRange(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	report, err := h.reports.Expenses(r.Context(), q.companyID, q.carID, q.from, q.to)
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
		data, err = export.ExpensePDF(report)
		contentType = "application/pdf"
	case "xlsx":
		data, err = export.ExpenseXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		h.logger.Printf("expense export: format=%s err=%v", format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	result = metrics.ResultSuccess
	filename := "expenses-" + report.From.Format("20060102") + "-" + report.To.Format("20060102") + "." + format
	apihttp.WriteFile(w, contentType, filename, data)

	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, audit.ActionExport, "expense_summary", report.CarID, "", map[string]any{"format": format})
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("expense audit: export err=%v", err)
	}
}
