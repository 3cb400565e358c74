package middleware

import (
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracing はX-Rayのセグメントを開始します。enabledがfalseの場合は何もしません
func Tracing(name string, enabled bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return xray.Handler(xray.NewFixedSegmentNamer(name), next)
	}
}
