package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
	ledgerapp "fleet-settlement/internal/ledger/application"
	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/money"
)

// Handler provides earning HTTP endpoints.
type Handler struct {
	service     *ledgerapp.Service
	auditLogger audit.Logger
	limiter     *apihttp.RateLimiter
}

// NewHandler constructs a handler. limiter throttles ingestion and may be nil.
func NewHandler(service *ledgerapp.Service, auditLogger audit.Logger, limiter *apihttp.RateLimiter) (*Handler, error) {
	if service == nil {
		return nil, errors.New("ledger handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger, limiter: limiter}, nil
}

// Register mounts the earning routes. The webhook route must sit behind
// auth.WebhookAuthMiddleware.
func (h *Handler) Register(api *mux.Router, webhooks *mux.Router) {
	api.Handle("/earnings", h.limiter.Wrap(http.HandlerFunc(h.handleIngest))).Methods(http.MethodPost)
	api.HandleFunc("/earnings", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/earnings/{id}", h.handleGet).Methods(http.MethodGet)
	if webhooks != nil {
		webhooks.Handle("/earnings", h.limiter.Wrap(http.HandlerFunc(h.handleWebhook))).Methods(http.MethodPost)
	}
}

type ingestRequest struct {
	ID            string `json:"id" validate:"omitempty,max=64"`
	ContractID    string `json:"contract_id" validate:"required,max=64"`
	CompanyID     string `json:"company_id" validate:"omitempty,max=64"`
	Platform      string `json:"platform" validate:"required"`
	GrossIncome   string `json:"gross_income" validate:"required"`
	BTWPercentage string `json:"btw_percentage" validate:"omitempty"`
	IncomeDate    string `json:"income_date" validate:"required"`
	WeekStart     string `json:"week_start" validate:"required_with=WeekEnd"`
	WeekEnd       string `json:"week_end" validate:"required_with=WeekStart"`
}

func (req ingestRequest) toInput() (ledgerapp.IngestInput, error) {
	platform, err := ledger.ParsePlatform(req.Platform)
	if err != nil {
		return ledgerapp.IngestInput{}, err
	}
	gross, err := money.ParseAmount(req.GrossIncome)
	if err != nil {
		return ledgerapp.IngestInput{}, err
	}
	in := ledgerapp.IngestInput{
		ID:          req.ID,
		ContractID:  req.ContractID,
		CompanyID:   req.CompanyID,
		Platform:    platform,
		GrossIncome: gross,
	}
	if req.BTWPercentage != "" {
		pct, err := decimal.NewFromString(req.BTWPercentage)
		if err != nil {
			return ledgerapp.IngestInput{}, money.ErrInvalidAmount
		}
		in.BTWPercentage = &pct
	}
	if in.IncomeDate, err = apihttp.ParseTime("income_date", req.IncomeDate); err != nil {
		return ledgerapp.IngestInput{}, err
	}
	if req.WeekStart != "" {
		if in.WeekStart, err = apihttp.ParseTime("week_start", req.WeekStart); err != nil {
			return ledgerapp.IngestInput{}, err
		}
		if in.WeekEnd, err = apihttp.ParseTime("week_end", req.WeekEnd); err != nil {
			return ledgerapp.IngestInput{}, err
		}
	}
	return in, nil
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := apihttp.DecodeJSON(w, r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID != "" && req.CompanyID != "" && req.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if companyID != "" {
		req.CompanyID = companyID
	}
	in, err := req.toInput()
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	record, err := h.service.Ingest(r.Context(), in)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, record)
	h.logAudit(r, record, "api")
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := apihttp.DecodeJSON(w, r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if req.CompanyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if signer := auth.PlatformFromContext(r.Context()); signer != string(in.Platform) {
		http.Error(w, "platform does not match signature", http.StatusForbidden)
		return
	}
	record, err := h.service.Ingest(r.Context(), in)
	if errors.Is(err, ledger.ErrDuplicateEarning) {
		apihttp.WriteJSON(w, http.StatusOK, map[string]any{"duplicate": true})
		return
	}
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, record)
	h.logAudit(r, record, "webhook")
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	contractID := r.URL.Query().Get("contract_id")
	if contractID == "" {
		http.Error(w, "contract_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := auth.IdentityFromContext(r.Context()); ok && !auth.CanAccessContract(r.Context(), contractID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	from, err := apihttp.TimeQuery(r, "from")
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	to, err := apihttp.TimeQuery(r, "to")
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}

	var records []ledger.EarningRecord
	if r.URL.Query().Get("unsettled") == "true" {
		seq, err := h.service.FindUnsettled(r.Context(), contractID, from, to)
		if err != nil {
			apihttp.RespondError(w, err)
			return
		}
		for record := range seq {
			records = append(records, record)
		}
	} else {
		records, err = h.service.ListByContract(r.Context(), contractID, from, to)
		if err != nil {
			apihttp.RespondError(w, err)
			return
		}
	}
	apihttp.WriteJSON(w, http.StatusOK, visible(r, records))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if len(visible(r, []ledger.EarningRecord{record})) == 0 {
		apihttp.RespondError(w, ledger.ErrEarningNotFound)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, record)
}

// visible drops records of other companies or, for drivers, other contracts.
func visible(r *http.Request, records []ledger.EarningRecord) []ledger.EarningRecord {
	ctx := r.Context()
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return records
	}
	result := make([]ledger.EarningRecord, 0, len(records))
	for _, record := range records {
		if auth.EnsureCompany(ctx, record.CompanyID) != nil || !auth.CanAccessContract(ctx, record.ContractID) {
			continue
		}
		result = append(result, record)
	}
	return result
}

func (h *Handler) logAudit(r *http.Request, record ledger.EarningRecord, source string) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, audit.ActionEarningIngest, "earning", record.ID, record.ContractID, map[string]any{
		"platform":     record.Platform,
		"gross_income": money.Format(record.GrossIncome),
		"income_date":  record.IncomeDate.Format(time.RFC3339),
		"source":       source,
	})
	if entry.CompanyID == "" {
		entry.CompanyID = record.CompanyID
	}
	if entry.Actor == "" {
		entry.Actor = auth.PlatformFromContext(r.Context())
	}
	_ = h.auditLogger.Log(r.Context(), entry)
}
