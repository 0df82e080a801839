package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// Recovery перехватывает панику в обработчике и отвечает 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"component":  "panic_recovery",
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Request.URL.Path,
					"request_id": GetRequestID(c),
					"stack":      string(debug.Stack()),
				}).Error("ПАНИКА в обработчике — восстановлено")

				response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "internal error")
			}
		}()
		c.Next()
	}
}
