package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// respondServiceError переводит ошибку сервиса в HTTP-статус.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidUser):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidUser, err)
	case errors.Is(err, common.ErrUnknownActionType):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnknownAction, err)
	case errors.Is(err, common.ErrInvalidAmount):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeInvalidAmount, err)
	case errors.Is(err, common.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err)
	case errors.Is(err, common.ErrStorageConflict):
		response.Retryable(c, http.StatusConflict, response.CodeConflict, err)
	case errors.Is(err, common.ErrStorageUnavailable):
		response.Retryable(c, http.StatusServiceUnavailable, response.CodeUnavailable, err)
	default:
		// Детали внутренних ошибок наружу не отдаём
		log.WithError(err).WithField("path", c.FullPath()).Error("Необработанная ошибка сервиса")
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, errors.New("internal error"))
	}
}
