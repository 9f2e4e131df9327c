package middleware

import (
	"github.com/gin-gonic/gin"

	"lokbazaar-backend/internal/audit"
)

// AuditContext copies the request id and resolved client IP into the
// request context so audit records written deeper in the stack carry
// them. Must run after RequestIDMiddleware and RealIP.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := audit.Meta{
			RequestID: c.GetString("request_id"),
			IP:        ipFromCtx(c),
		}
		c.Request = c.Request.WithContext(audit.WithMeta(c.Request.Context(), m))
		c.Next()
	}
}
