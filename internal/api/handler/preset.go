package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
)

type PresetService interface {
	ListPresets(ctx context.Context) ([]model.Preset, error)
	GetConfig(ctx context.Context, rawID string) (*model.PresetConfig, error)
	UpdateConfig(ctx context.Context, rawID string, input model.UpdatePresetConfigInput) (*model.PresetConfig, error)
	DeletePreset(ctx context.Context, rawID string) (*repository.DeleteSummary, error)
	ListPresetProducts(ctx context.Context, rawID string) ([]model.PresetProductDetail, error)
	ReplacePresetProducts(ctx context.Context, rawID string, inputs []model.PresetProductInput) ([]model.PresetProductDetail, error)
	AddPresetProduct(ctx context.Context, rawID string, input model.PresetProductInput) (*model.PresetProductDetail, error)
}

type PresetHandler struct {
	service PresetService
	rs      *response.Responder
}

func NewPresetHandler(service PresetService, rs *response.Responder) *PresetHandler {
	if service == nil {
		panic("preset service cannot be nil")
	}
	return &PresetHandler{service: service, rs: rs}
}

// List GET /presets
func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	presets, err := h.service.ListPresets(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, presets)
}

// GetConfig GET /presets/{id}/config
func (h *PresetHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, cfg)
}

// UpdateConfig PUT /presets/{id}/config
func (h *PresetHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var input model.UpdatePresetConfigInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	cfg, err := h.service.UpdateConfig(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, cfg)
}

// Delete DELETE /presets/{id}
func (h *PresetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DeletePreset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, map[string]any{"deleted": summary})
}

// ListProducts GET /presets/{id}/products
func (h *PresetHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.ListPresetProducts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, details)
}

type replacePresetProductsRequest struct {
	Products []model.PresetProductInput `json:"products"`
}

// ReplaceProducts PUT /presets/{id}/products
func (h *PresetHandler) ReplaceProducts(w http.ResponseWriter, r *http.Request) {
	var req replacePresetProductsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	details, err := h.service.ReplacePresetProducts(r.Context(), chi.URLParam(r, "id"), req.Products)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, details)
}

// AddProduct POST /presets/{id}/products
func (h *PresetHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var input model.PresetProductInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	detail, err := h.service.AddPresetProduct(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, detail)
}
