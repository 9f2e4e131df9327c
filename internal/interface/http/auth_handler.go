package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lokbazaar-backend/config"
	"lokbazaar-backend/internal/application"
	"lokbazaar-backend/internal/audit"
	"lokbazaar-backend/pkg/helpers"
	"lokbazaar-backend/pkg/mailer"
	tpl "lokbazaar-backend/pkg/mailer/templates"
	"lokbazaar-backend/pkg/metrics"
	"lokbazaar-backend/pkg/response"
	"lokbazaar-backend/pkg/validation"
)

// JobPublisher enqueues mail jobs for the out-of-process worker.
// *helpers.RabbitPublisher satisfies it. A nil publisher means mail
// delivery is switched off; a nil *RabbitPublisher must be wired as a
// nil interface so the handler guards see it.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

var _ JobPublisher = (*helpers.RabbitPublisher)(nil)

type AuthHandler struct {
	Svc    *application.Service
	Cfg    *config.Config
	Pub    JobPublisher
	Audit  *audit.Recorder
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.Service, cfg *config.Config, pub JobPublisher, rec *audit.Recorder, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cfg: cfg, Pub: pub, Audit: rec, Logger: logger}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

type registerRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,pwd"`
	Name              string `json:"name" binding:"required"`
	UserType          string `json:"userType" binding:"required,usertype"`
	PreferredLanguage string `json:"preferredLanguage" binding:"required,langcode"`
	PhoneNumber       string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type updateLanguageRequest struct {
	Language string `json:"language" binding:"required,langcode"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:             req.Email,
		Password:          req.Password,
		Name:              req.Name,
		UserType:          req.UserType,
		PreferredLanguage: req.PreferredLanguage,
		PhoneNumber:       req.PhoneNumber,
	})
	if err != nil {
		var verr *application.ValidationError
		switch {
		case errors.As(err, &verr):
			response.Error(c, http.StatusBadRequest, "validation failed", verr.Fields)
		case errors.Is(err, application.ErrDuplicateEmail):
			response.Error(c, http.StatusBadRequest, "Email already registered", nil)
		default:
			h.Logger.WithError(err).Error("registration failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}
		return
	}

	metrics.RecordRegistration(string(res.User.UserType))
	h.enqueueWelcome(c, res.User.Name, res.User.Email)
	response.Success(c, http.StatusCreated, res, "registration successful", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			metrics.RecordLogin("failure")
			response.Error(c, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	metrics.RecordLogin("success")
	response.Success(c, http.StatusOK, res, "login successful", nil)
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidToken):
			response.Error(c, http.StatusUnauthorized, "invalid or expired refresh token", nil)
		case errors.Is(err, application.ErrUserNotFound):
			response.Error(c, http.StatusUnauthorized, "user not found", nil)
		default:
			h.Logger.WithError(err).Error("token refresh failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}
		return
	}

	metrics.TokenRefreshCounter.Inc()
	response.Success(c, http.StatusOK, res, "token refreshed", nil)
}

// Logout POST /api/auth/logout (auth required). Tokens are stateless,
// so logout only acknowledges the client-side discard.
func (h *AuthHandler) Logout(c *gin.Context) {
	uid := c.GetString("userID")
	h.Audit.Record(c.Request.Context(), audit.Event{
		Kind:   audit.EventLogout,
		UserID: uid,
		Email:  c.GetString("userEmail"),
	})
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// UpdateLanguage PUT /api/auth/language (auth required)
func (h *AuthHandler) UpdateLanguage(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	profile, err := h.Svc.UpdateLanguage(c.Request.Context(), uid, req.Language)
	if err != nil {
		var verr *application.ValidationError
		switch {
		case errors.As(err, &verr):
			response.Error(c, http.StatusBadRequest, "validation failed", verr.Fields)
		case errors.Is(err, application.ErrUserNotFound):
			// valid token for a deleted account, the session is dead
			response.Error(c, http.StatusUnauthorized, "user not found", nil)
		default:
			h.Logger.WithError(err).Error("language update failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, profile, "language preference updated", nil)
}

// Me GET /api/auth/me (auth required)
func (h *AuthHandler) Me(c *gin.Context) {
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
	response.Success(c, http.StatusOK, profile, "profile", nil)
}

func (h *AuthHandler) enqueueWelcome(c *gin.Context, name, email string) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	job := mailer.EmailJob{
		To:       email,
		Template: tpl.Welcome,
		Data:     tpl.NewWelcomeData(h.Cfg, name, email),
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("email", email).Warn("welcome email enqueue failed")
	}
}
