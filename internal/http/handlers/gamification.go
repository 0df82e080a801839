// Package handlers — HTTP-обработчики API геймификации.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/gamification"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// Gamification — то, что обработчикам нужно от фасада.
type Gamification interface {
	ProcessEvent(ctx context.Context, userID int64, ev gamification.Event) (*gamification.EventResult, error)
	Achievements(ctx context.Context, userID int64, includeLocked bool) (*achievements.Overview, error)
	StreakStatus(ctx context.Context, userID int64) (*streak.StatusResult, error)
	Progression(ctx context.Context, userID int64) (*xp.Summary, error)
}

type GamificationHandler struct {
	svc Gamification
}

func NewGamificationHandler(svc Gamification) *GamificationHandler {
	return &GamificationHandler{svc: svc}
}

type eventRequest struct {
	EventType   string         `json:"event_type" binding:"required,max=64"`
	ReferenceID string         `json:"reference_id" binding:"max=255"`
	Context     map[string]any `json:"context"`
}

// POST /api/v1/users/:id/events
func (h *GamificationHandler) ProcessEvent(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}

	res, err := h.svc.ProcessEvent(c.Request.Context(), userID, gamification.Event{
		Type:        req.EventType,
		ReferenceID: req.ReferenceID,
		Context:     req.Context,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.OK(c, res)
}

// GET /api/v1/users/:id/achievements?include_locked=true
func (h *GamificationHandler) GetAchievements(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	includeLocked := false
	if raw := c.Query("include_locked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRequest,
				fmt.Errorf("include_locked: ожидается true/false, получено %q", raw))
			return
		}
		includeLocked = v
	}

	ov, err := h.svc.Achievements(c.Request.Context(), userID, includeLocked)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.OK(c, ov)
}

// GET /api/v1/users/:id/streak
func (h *GamificationHandler) GetStreak(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	st, err := h.svc.StreakStatus(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.OK(c, st)
}

// GET /api/v1/users/:id/progression
func (h *GamificationHandler) GetProgression(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Progression(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.OK(c, p)
}

// userIDParam разбирает :id. При ошибке ответ уже записан.
func userIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidUser,
			fmt.Errorf("%w: %q", common.ErrInvalidUser, raw))
		return 0, false
	}
	return id, true
}
