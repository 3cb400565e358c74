package handler

import (
	"context"
	"net/http"

	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/service/stats"
)

type StatsService interface {
	Get(ctx context.Context) (*stats.Stats, error)
}

type AdminHandler struct {
	stats StatsService
	rs    *response.Responder
}

func NewAdminHandler(statsService StatsService, rs *response.Responder) *AdminHandler {
	return &AdminHandler{stats: statsService, rs: rs}
}

// Stats GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Get(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, s)
}
