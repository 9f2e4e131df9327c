package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/internal/container"
	handlers "lokbazaar-backend/internal/interface/http"
	"lokbazaar-backend/internal/interface/middleware"
	"lokbazaar-backend/pkg/helpers"
)

// ProfileModule wires the authenticated profile endpoints.
// GET /api/profile, PUT /api/profile, POST /api/profile/avatar
type ProfileModule struct {
	Handler *handlers.ProfileHandler
	JWT     *helpers.JWTManager
}

func NewProfileModule(h *handlers.ProfileHandler, jwt *helpers.JWTManager) *ProfileModule {
	return &ProfileModule{Handler: h, JWT: jwt}
}

func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/profile", m.Handler.Get)
		auth.PUT("/profile", m.Handler.Update)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
	}
}
