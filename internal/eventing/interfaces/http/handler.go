package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/auth"
	"fleet-settlement/internal/eventing"
)

const defaultLimit = 100

// DeadLetterLister lists undeliverable events.
type DeadLetterLister interface {
	List(ctx context.Context, companyID string, limit int) ([]eventing.DeadLetter, error)
}

// Handler exposes dead-lettered outbox events to admins.
type Handler struct {
	store DeadLetterLister
}

// NewHandler constructs a handler.
func NewHandler(store DeadLetterLister) (*Handler, error) {
	if store == nil {
		return nil, errors.New("dead letter handler: nil store")
	}
	return &Handler{store: store}, nil
}

// Register mounts GET /admin/dead-letters on the /api/v1 router.
func (h *Handler) Register(api *mux.Router) {
	api.Handle("/admin/dead-letters", h).Methods(http.MethodGet)
}

// ServeHTTP lists the dead letters of the caller's company.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	letters, err := h.store.List(r.Context(), auth.CompanyIDFromContext(r.Context()), limit)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, letters)
}
