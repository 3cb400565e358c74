package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "指定されたIDを引き継ぐ", header: "req-123", want: "req-123"},
		{name: "未指定の場合は採番する", header: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			if tt.want != "" {
				assert.Equal(t, tt.want, seen)
			} else {
				assert.Len(t, seen, 36)
			}
		})
	}

	assert.Equal(t, "unknown", GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("handler log")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/reservations", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var handlerLog, accessLog map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &handlerLog))
	require.NoError(t, json.Unmarshal(lines[1], &accessLog))
	assert.Equal(t, "req-42", handlerLog["request_id"])
	assert.Equal(t, "req-42", accessLog["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), accessLog["status"])
	assert.Equal(t, "/api/reservations", accessLog["path"])
}

func TestRecover(t *testing.T) {
	h := Recover(response.New(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestTokenBucket(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	b := NewTokenBucket(2, 1)
	b.now = func() time.Time { return now }
	b.lastRefill = now

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.False(t, b.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	// 長時間空いても容量を超えて貯まらない
	now = now.Add(time.Hour)
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	rs := response.New(false)

	limited := RateLimit(NewTokenBucket(1, 0.001), rs)(ok)
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"RATE_LIMITED"`)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	unlimited := RateLimit(nil, rs)(ok)
	for i := 0; i < 10; i++ {
		rec = httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
}
