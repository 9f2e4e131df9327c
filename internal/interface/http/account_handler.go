package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"lokbazaar-backend/config"
	"lokbazaar-backend/internal/application"
	"lokbazaar-backend/internal/audit"
	"lokbazaar-backend/pkg/mailer"
	tpl "lokbazaar-backend/pkg/mailer/templates"
	"lokbazaar-backend/pkg/response"
	"lokbazaar-backend/pkg/validation"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = 30 * time.Minute
)

// TokenStore is the slice of the Redis API the one-shot token flows
// use. *redis.Client satisfies it.
type TokenStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ TokenStore = (*redis.Client)(nil)

// AccountHandler owns the email verification and password reset flows.
// Both use one-shot opaque tokens stored in Redis, delivered by mail.
type AccountHandler struct {
	Svc    *application.Service
	RDB    TokenStore
	Cfg    *config.Config
	Pub    JobPublisher
	Audit  *audit.Recorder
	Logger *logrus.Logger
}

func NewAccountHandler(svc *application.Service, rdb TokenStore, cfg *config.Config, pub JobPublisher, rec *audit.Recorder, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, RDB: rdb, Cfg: cfg, Pub: pub, Audit: rec, Logger: logger}
}

// Key helpers
func keyVerifyToken(t string) string { return "email:verify:token:" + t }
func keyResetToken(t string) string  { return "pwd:reset:token:" + t }

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// VerifyInit POST /api/account/verify/init (auth required)
// Issues a one-shot token and mails a verification link.
func (h *AccountHandler) VerifyInit(c *gin.Context) {
	uid := c.GetString("userID")
	profile, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error(c, http.StatusUnauthorized, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("profile lookup failed")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	if profile.IsVerified {
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}
	if h.RDB == nil {
		response.Error(c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}

	tok, err := genToken(32)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	if err := h.RDB.Set(c.Request.Context(), keyVerifyToken(tok), uid, verifyTokenTTL).Err(); err != nil {
		h.Logger.WithError(err).Error("verify token store failed")
		response.Error(c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}

	link := h.Cfg.VerifyEmailURL + "?token=" + tok
	h.enqueueMail(c, mailer.EmailJob{
		To:       profile.Email,
		Template: tpl.VerifyEmail,
		Data:     tpl.NewVerifyEmailData(h.Cfg, profile.Name, profile.Email, link, tpl.WithExpiresIn(verifyTokenTTL)),
	})

	response.Success(c, http.StatusOK, gin.H{"sent": true}, "verification email sent", nil)
}

// VerifyConfirm POST /api/account/verify/confirm {token}
func (h *AccountHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error(c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}

	uid, err := h.RDB.Get(c.Request.Context(), keyVerifyToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error(c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err := h.Svc.MarkVerified(c.Request.Context(), uid); err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error(c, http.StatusBadRequest, "invalid or expired token", nil)
			return
		}
		h.Logger.WithError(err).Error("mark verified failed")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	h.RDB.Del(c.Request.Context(), keyVerifyToken(req.Token))

	response.Success(c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResetInit POST /api/account/reset/init {email}
// Always answers 200 so callers cannot probe which emails exist.
func (h *AccountHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.GetUserByEmail(c.Request.Context(), req.Email)
	if h.RDB == nil {
		h.Audit.Record(c.Request.Context(), audit.Event{Kind: audit.EventPasswordReset, Email: req.Email, Detail: "init skipped, token store unavailable"})
		response.Success(c, http.StatusOK, gin.H{"sent": true}, "if the email exists, a reset link has been sent", nil)
		return
	}
	if err != nil {
		h.Audit.Record(c.Request.Context(), audit.Event{Kind: audit.EventPasswordReset, Email: req.Email, Detail: "init for unknown email"})
		response.Success(c, http.StatusOK, gin.H{"sent": true}, "if the email exists, a reset link has been sent", nil)
		return
	}

	tok, err := genToken(32)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	if err := h.RDB.Set(c.Request.Context(), keyResetToken(tok), u.ID, resetTokenTTL).Err(); err != nil {
		h.Logger.WithError(err).Error("reset token store failed")
		response.Error(c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}

	link := h.Cfg.ResetPasswordURL + "?token=" + tok
	h.enqueueMail(c, mailer.EmailJob{
		To:       u.Email,
		Template: tpl.PasswordReset,
		Data:     tpl.NewPasswordResetData(h.Cfg, u.Name, u.Email, link, tpl.WithExpiresIn(resetTokenTTL)),
	})
	h.Audit.Record(c.Request.Context(), audit.Event{Kind: audit.EventPasswordReset, UserID: u.ID, Email: u.Email, Detail: "init"})

	response.Success(c, http.StatusOK, gin.H{"sent": true}, "if the email exists, a reset link has been sent", nil)
}

// ResetConfirm POST /api/account/reset/confirm {token, newPassword}
func (h *AccountHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error(c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}

	uid, err := h.RDB.Get(c.Request.Context(), keyResetToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error(c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err := h.Svc.SetPassword(c.Request.Context(), uid, req.NewPassword); err != nil {
		var verr *application.ValidationError
		switch {
		case errors.As(err, &verr):
			response.Error(c, http.StatusBadRequest, "validation failed", verr.Fields)
		case errors.Is(err, application.ErrUserNotFound):
			response.Error(c, http.StatusBadRequest, "invalid or expired token", nil)
		default:
			h.Logger.WithError(err).Error("password update failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}
		return
	}
	h.RDB.Del(c.Request.Context(), keyResetToken(req.Token))

	response.Success(c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}

func (h *AccountHandler) enqueueMail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("email enqueue failed")
	}
}
