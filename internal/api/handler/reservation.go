package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type ReservationService interface {
	Submit(ctx context.Context, input model.ReservationInput) (*model.ReservationResult, error)
	Get(ctx context.Context, rawID string) (*model.Reservation, error)
	List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
	Cancel(ctx context.Context, token string) (*model.Reservation, error)
}

type ReservationHandler struct {
	service ReservationService
	rs      *response.Responder
}

func NewReservationHandler(service ReservationService, rs *response.Responder) *ReservationHandler {
	if service == nil {
		panic("reservation service cannot be nil")
	}
	return &ReservationHandler{service: service, rs: rs}
}

// Create POST /reservations
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input model.ReservationInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	result, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, result)
}

// List GET /reservations
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var msgs apperror.Messages
	filter := model.ReservationFilter{
		Status:     model.ReservationStatus(q.Get("status")),
		PickupDate: q.Get("pickup_date"),
		Limit:      queryInt(r, "limit", &msgs),
		Offset:     queryInt(r, "offset", &msgs),
	}
	if raw := q.Get("preset_id"); raw != "" {
		id, ok := model.ParseID(raw)
		if !ok {
			msgs.Add("preset_id must be a positive integer")
		}
		filter.PresetID = &id
	}
	if err := msgs.Err(); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	reservations, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, reservations)
}

// Get GET /reservations/{id}
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	reservation, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, reservation)
}

// Cancel POST /reservations/cancel/{token}
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reservation, err := h.service.Cancel(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, reservation)
}
