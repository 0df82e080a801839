package middleware

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/http/response"
)

// TokenAuth проверяет сервисный токен "Authorization: Bearer <token>"
// по Argon2id хешу из API_TOKEN_HASH.
type TokenAuth struct {
	hash string

	// Argon2 на каждый запрос слишком дорог: принятые токены храним по sha256
	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]struct{}
}

// NewTokenAuth создаёт проверку. Пустой hash отключает её.
func NewTokenAuth(hash string) *TokenAuth {
	if hash == "" {
		log.Warn("API_TOKEN_HASH не задан — API открыт без авторизации")
	}
	return &TokenAuth{
		hash:     hash,
		accepted: make(map[[sha256.Size]byte]struct{}),
	}
}

// RequireToken пропускает только запросы с верным токеном.
func (a *TokenAuth) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.hash == "" {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing or invalid token")
			return
		}

		ok, err := a.verify(token)
		if err != nil {
			log.WithError(err).Error("Битый API_TOKEN_HASH")
			response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "internal error")
			return
		}
		if !ok {
			log.WithFields(log.Fields{
				"client_ip":  c.ClientIP(),
				"request_id": GetRequestID(c),
			}).Warn("Неверный сервисный токен")
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, common.ErrUnauthorized.Error())
			return
		}
		c.Next()
	}
}

func (a *TokenAuth) verify(token string) (bool, error) {
	key := sha256.Sum256([]byte(token))

	a.mu.RLock()
	_, cached := a.accepted[key]
	a.mu.RUnlock()
	if cached {
		return true, nil
	}

	ok, err := common.VerifyToken(token, a.hash)
	if err != nil || !ok {
		return false, err
	}

	a.mu.Lock()
	a.accepted[key] = struct{}{}
	a.mu.Unlock()
	return true, nil
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
