package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type FormSettingsService interface {
	List(ctx context.Context) ([]model.FormSettings, error)
	Get(ctx context.Context, rawID string) (*model.FormSettings, error)
	Create(ctx context.Context, input model.FormSettingsInput) (*model.FormSettings, error)
	Update(ctx context.Context, rawID string, input model.FormSettingsInput) (*model.FormSettings, error)
}

type FormSettingsHandler struct {
	service FormSettingsService
	rs      *response.Responder
}

func NewFormSettingsHandler(service FormSettingsService, rs *response.Responder) *FormSettingsHandler {
	if service == nil {
		panic("form settings service cannot be nil")
	}
	return &FormSettingsHandler{service: service, rs: rs}
}

// List GET /admin/form-settings
func (h *FormSettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, list)
}

// Create POST /admin/form-settings
func (h *FormSettingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input model.FormSettingsInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	settings, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, settings)
}

// Get GET /admin/form-settings/{id}
func (h *FormSettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, settings)
}

// Update PUT /admin/form-settings/{id}
func (h *FormSettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input model.FormSettingsInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	settings, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, settings)
}
