package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/internal/domain/entity"
	"lokbazaar-backend/pkg/response"
)

// LanguageHandler serves the catalog of languages the marketplace
// supports. The list is fixed at build time, so no storage is touched.
type LanguageHandler struct{}

func NewLanguageHandler() *LanguageHandler { return &LanguageHandler{} }

// List GET /api/languages
func (h *LanguageHandler) List(c *gin.Context) {
	response.Success(c, http.StatusOK, entity.SupportedLanguages, "supported languages", nil)
}
