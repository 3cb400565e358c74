package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
)

// TokenBucket はトークンバケット方式のレート制限です
// トークンは取得時に経過時間から補充します
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	perSecond  float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

func NewTokenBucket(capacity int, perSecond float64) *TokenBucket {
	b := &TokenBucket{
		capacity:  float64(capacity),
		perSecond: perSecond,
		tokens:    float64(capacity),
		now:       time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// Allow はトークンを1つ消費できた場合にtrueを返します
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.perSecond)
		b.lastRefill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimit はバケットが空の場合に429を返します。bucketがnilの場合は制限しません
func RateLimit(bucket *TokenBucket, rs *response.Responder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if bucket == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !bucket.Allow() {
				w.Header().Set("Retry-After", "1")
				rs.Error(w, r, apperror.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
