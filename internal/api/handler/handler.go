package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
)

// maxJSONBodySize はJSONリクエストボディの上限です
const maxJSONBodySize = 1 << 20

// decodeJSON はリクエストボディをvに読み込みます。不正な場合はバリデーションエラーを返します
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.Validation([]string{"request body is too large"})
		case errors.Is(err, io.EOF):
			return apperror.Validation([]string{"request body is required"})
		default:
			return apperror.Validation([]string{"request body must be valid JSON: " + err.Error()})
		}
	}
	return nil
}

// queryInt はクエリパラメータを整数として読み込みます。未指定の場合は0を返します
func queryInt(r *http.Request, key string, msgs *apperror.Messages) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		msgs.Add("%s must be an integer", key)
		return 0
	}
	return v
}
