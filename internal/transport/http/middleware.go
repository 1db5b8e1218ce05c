package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

const (
	HeaderRequestID  = "X-Request-ID"
	HeaderAdminToken = "X-Admin-Token"

	ctxRequestID = "request_id"
)

// RequestID propagates the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ctxRequestID, reqID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), reqID))
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// AdminAuth guards operator endpoints with a static token. An empty token
// disables the admin API.
func AdminAuth(token string, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAdminToken)
		if got == "" {
			got = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			l.Info("[AdminAuth] rejected admin request", map[string]string{
				"path":       c.FullPath(),
				"client_ip":  c.ClientIP(),
				"request_id": c.GetString(ctxRequestID),
			})
			err := model.Validationf("invalid admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, view.CreateResponse[any](nil, err, nil, "unauthorized"))
			return
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP and evicts idle clients.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	hits     uint64
}

// NewRateLimiter returns nil when the limit is disabled.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (r *RateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = now

	r.hits++
	if r.hits%512 == 0 {
		cutoff := now.Add(-r.idleTTL)
		for k, other := range r.visitors {
			if other.lastSeen.Before(cutoff) {
				delete(r.visitors, k)
			}
		}
	}

	return v.limiter.AllowN(now, 1)
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			err := model.Validationf("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, view.CreateResponse[any](nil, err, nil, "too many requests"))
			return
		}
		c.Next()
	}
}
