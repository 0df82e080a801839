// Package middleware содержит промежуточные обработчики HTTP: request id,
// логирование запросов, восстановление после паники, rate-limiting и
// проверку сервисного токена.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-Id"
	ctxKeyRequestID = "request_id"
)

// RequestID берёт X-Request-Id из запроса или генерирует новый.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID возвращает id текущего запроса (пусто, если RequestID не подключён).
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}
