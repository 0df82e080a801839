package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// RateLimiter ограничивает количество запросов на клиента.
// Окно скользящее: учитываются запросы за последние window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close останавливает очистку устаревших окон. Повторный вызов безопасен.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow учитывает запрос клиента key и сообщает, укладывается ли он в лимит.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(key, now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// Middleware — лимит на пару (IP, пользователь из :id). Запросы одного
// бэкенда за разных пользователей не делят общее окно.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(rl.window.Seconds())))
	return func(c *gin.Context) {
		if !rl.Allow(limitKey(c)) {
			c.Header("Retry-After", retryAfter)
			response.Abort(c, http.StatusTooManyRequests, response.CodeRateLimited, "слишком много запросов")
			return
		}
		c.Next()
	}
}

func limitKey(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return c.ClientIP() + "|" + id
	}
	return c.ClientIP()
}

func (rl *RateLimiter) recent(key string, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.window)
			for key := range rl.requests {
				if recent := rl.recent(key, cutoff); len(recent) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = recent
				}
			}
			rl.mu.Unlock()
		}
	}
}
