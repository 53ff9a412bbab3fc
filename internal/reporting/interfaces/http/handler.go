package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/auth"
	"fleet-settlement/internal/reporting"
)

// Handler serves the company dashboard.
type Handler struct {
	reports *reporting.Service
}

// NewHandler constructs a handler.
func NewHandler(reports *reporting.Service) (*Handler, error) {
	if reports == nil {
		return nil, errors.New("dashboard handler: nil reporting service")
	}
	return &Handler{reports: reports}, nil
}

// Register mounts GET /dashboard on the /api/v1 router.
func (h *Handler) Register(api *mux.Router) {
	api.Handle("/dashboard", h).Methods(http.MethodGet)
}

// ServeHTTP returns settlements overlapping [from, to) and expenses dated
// inside the same days.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "company is required", http.StatusForbidden)
		return
	}
	dashboard, err := h.reports.Dashboard(r.Context(), companyID, from, to)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, dashboard)
}
