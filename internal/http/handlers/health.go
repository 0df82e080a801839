package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// Pinger — хранилище, доступность которого проверяет healthcheck.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
