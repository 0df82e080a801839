// Package http собирает HTTP API сервиса геймификации.
package http

import (
	"github.com/gin-gonic/gin"

	httpH "serotonyl.ru/lingvo-backend/internal/http/handlers"
	httpMW "serotonyl.ru/lingvo-backend/internal/http/middleware"
)

type RouterConfig struct {
	GamificationHandler *httpH.GamificationHandler
	HealthHandler       *httpH.HealthHandler
	TokenAuth           *httpMW.TokenAuth
	RateLimiter         *httpMW.RateLimiter
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger())
	r.Use(httpMW.Recovery())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware())
		}
		if cfg.TokenAuth != nil {
			api.Use(cfg.TokenAuth.RequireToken())
		}

		if h := cfg.GamificationHandler; h != nil {
			api.POST("/users/:id/events", h.ProcessEvent)
			api.GET("/users/:id/achievements", h.GetAchievements)
			api.GET("/users/:id/streak", h.GetStreak)
			api.GET("/users/:id/progression", h.GetProgression)
		}
	}

	return r
}
