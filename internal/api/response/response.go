package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
)

// Body は成功時のレスポンスです
type Body struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody は失敗時のレスポンスです
type ErrorBody struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Responder はJSONレスポンスを書き込みます
// Devがfalseの場合、サーバ側のエラーの詳細はレスポンスに含めません
type Responder struct {
	Dev bool
}

func New(dev bool) *Responder {
	return &Responder{Dev: dev}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Body{Success: true, Data: data})
}

func (rs *Responder) OK(w http.ResponseWriter, data any) {
	rs.JSON(w, http.StatusOK, data)
}

func (rs *Responder) Created(w http.ResponseWriter, data any) {
	rs.JSON(w, http.StatusCreated, data)
}

// Error はエラーの種類に応じたステータスコードで失敗レスポンスを返します
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.As(err)
	status := apperror.HTTPStatus(appErr)

	detail := ErrorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if apperror.IsServerSide(appErr) {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("code", appErr.Code).
			Int("status", status).
			Msg("request failed")
		detail.Details = nil
		if rs.Dev {
			detail.Details = err.Error()
		}
	}

	write(w, status, ErrorBody{Success: false, Error: detail})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
