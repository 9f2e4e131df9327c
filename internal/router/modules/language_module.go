package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/internal/container"
	handlers "lokbazaar-backend/internal/interface/http"
	"lokbazaar-backend/internal/interface/middleware"
)

// LanguageModule serves the public language catalog.
// GET /api/languages
type LanguageModule struct {
	Handler *handlers.LanguageHandler
}

func NewLanguageModule() *LanguageModule {
	return &LanguageModule{Handler: handlers.NewLanguageHandler()}
}

func (m *LanguageModule) Register(rg *gin.RouterGroup) {
	// Soft limit; in-cluster callers bypass it
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/languages", rl, m.Handler.List)
}
