package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lokbazaar-backend/internal/application"
	"lokbazaar-backend/pkg/response"
	"lokbazaar-backend/pkg/validation"
)

const maxAvatarBytes = 5 << 20

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type ProfileHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewProfileHandler(svc *application.Service, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{Svc: svc, Logger: logger}
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// Get GET /api/profile (auth required)
func (h *ProfileHandler) Get(c *gin.Context) {
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

// Update PUT /api/profile (auth required)
func (h *ProfileHandler) Update(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	profile, err := h.Svc.UpdateProfile(c.Request.Context(), uid, application.UpdateProfileInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		var verr *application.ValidationError
		switch {
		case errors.As(err, &verr):
			response.Error(c, http.StatusBadRequest, "validation failed", verr.Fields)
		case errors.Is(err, application.ErrUserNotFound):
			response.Error(c, http.StatusUnauthorized, "user not found", nil)
		default:
			h.Logger.WithError(err).Error("profile update failed")
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, profile, "profile updated", nil)
}

// UploadAvatar POST /api/profile/avatar (auth required, multipart)
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString("userID")
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxAvatarBytes {
		response.Error(c, http.StatusBadRequest, "avatar exceeds 5MB limit", nil)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !allowedAvatarTypes[contentType] {
		response.Error(c, http.StatusBadRequest, "avatar must be a jpeg, png or webp image", nil)
		return
	}

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, file, header.Filename, contentType)
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error(c, http.StatusUnauthorized, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("avatar upload failed")
		response.Error(c, http.StatusInternalServerError, "avatar upload failed", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar updated", nil)
}
