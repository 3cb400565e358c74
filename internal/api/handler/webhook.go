package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/line"
)

type WebhookHandler struct {
	channelSecret string
	rs            *response.Responder
}

func NewWebhookHandler(channelSecret string, rs *response.Responder) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, rs: rs}
}

// Line POST /webhook/line
// 署名を検証したうえでイベントを記録します
func (h *WebhookHandler) Line(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	if err != nil {
		h.rs.Error(w, r, apperror.Validation([]string{"failed to read request body"}))
		return
	}
	if !line.VerifySignature(h.channelSecret, body, r.Header.Get(line.SignatureHeader)) {
		h.rs.Error(w, r, apperror.InvalidSignature())
		return
	}

	var req line.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.rs.Error(w, r, apperror.Validation([]string{"request body must be valid JSON"}))
		return
	}

	logger := zerolog.Ctx(r.Context())
	for _, event := range req.Events {
		logger.Info().
			Str("event_type", event.Type).
			Str("source_type", event.Source.Type).
			Str("line_user_id", event.Source.UserID).
			Msg("line webhook event received")
	}
	h.rs.OK(w, map[string]int{"events": len(req.Events)})
}
