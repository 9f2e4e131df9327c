package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/internal/container"
	handlers "lokbazaar-backend/internal/interface/http"
	"lokbazaar-backend/internal/interface/middleware"
	"lokbazaar-backend/pkg/helpers"
)

// AccountModule wires email verification and password reset.
// Public: POST /api/account/verify/confirm, /api/account/reset/init, /api/account/reset/confirm
// Protected: POST /api/account/verify/init
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	verifyConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/account/verify/confirm", verifyConfirmLimiter, m.Handler.VerifyConfirm)
	rg.POST("/account/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/account/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)

	// Protected verify init with user-based rate limit
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/account/verify/init", m.Handler.VerifyInit)
	}
}
