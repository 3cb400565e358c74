package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
)

// Pinger はDBの疎通確認です
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
	rs *response.Responder
}

func NewHealthHandler(db Pinger, rs *response.Responder) *HealthHandler {
	return &HealthHandler{db: db, rs: rs}
}

// Health GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.rs.Error(w, r, apperror.Database("health check", err))
			return
		}
	}
	h.rs.OK(w, map[string]string{"status": "ok"})
}
