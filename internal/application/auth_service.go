package application

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lokbazaar-backend/internal/audit"
	"lokbazaar-backend/internal/domain/entity"
	"lokbazaar-backend/internal/domain/repository"
	"lokbazaar-backend/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = repository.ErrDuplicateEmail
)

// ValidationError reports every input rule an operation's payload broke,
// keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Service implements the auth operations: registration, login, token
// refresh, language preference, and profile maintenance.
type Service struct {
	Repo      repository.UserRepository
	JWT       *helpers.JWTManager
	GCS       *storage.Client
	GCSBucket string
	Logger    *logrus.Logger
	Audit     *audit.Recorder
}

func NewService(repo repository.UserRepository, jwt *helpers.JWTManager, gcs *storage.Client, gcsBucket string, logger *logrus.Logger, rec *audit.Recorder) *Service {
	return &Service{
		Repo:      repo,
		JWT:       jwt,
		GCS:       gcs,
		GCSBucket: gcsBucket,
		Logger:    logger,
		Audit:     rec,
	}
}

// UserProfile is the sanitized user shape returned to clients. It never
// carries the password hash.
type UserProfile struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	Name              string          `json:"name"`
	UserType          entity.UserType `json:"userType"`
	PreferredLanguage string          `json:"preferredLanguage"`
	PhoneNumber       *string         `json:"phoneNumber,omitempty"`
	IsVerified        bool            `json:"isVerified"`
	AvatarURL         string          `json:"avatarUrl,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func NewUserProfile(u *entity.User) *UserProfile {
	return &UserProfile{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		UserType:          u.UserType,
		PreferredLanguage: u.PreferredLanguage,
		PhoneNumber:       u.PhoneNumber,
		IsVerified:        u.IsVerified,
		AvatarURL:         u.AvatarURL,
		CreatedAt:         u.CreatedAt,
	}
}

// AuthResult is the success payload of registration, login and refresh.
// Refresh responses omit RefreshToken since the token is not rotated.
type AuthResult struct {
	User         *UserProfile `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type RegisterInput struct {
	Email             string
	Password          string
	Name              string
	UserType          string
	PreferredLanguage string
	PhoneNumber       string
}

var (
	emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nonDigits  = regexp.MustCompile(`\D`)
)

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// validateAndNormalize checks every registration rule and canonicalizes
// the input in place: email lowercased, name trimmed, language code
// lowercased, phone number reduced to its digits.
func (in *RegisterInput) validateAndNormalize() *ValidationError {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.UserType = strings.TrimSpace(in.UserType)
	in.PreferredLanguage = strings.ToLower(strings.TrimSpace(in.PreferredLanguage))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	fields := map[string]string{}
	if !emailShape.MatchString(in.Email) {
		fields["email"] = "must be a valid email"
	}
	if nonSpaceLen(in.Password) < 8 {
		fields["password"] = "must be at least 8 characters long"
	}
	if nonSpaceLen(in.Name) < 2 {
		fields["name"] = "must be at least 2 characters long"
	}
	if len(in.PreferredLanguage) < 2 {
		fields["preferredLanguage"] = "must be at least 2 characters long"
	}
	if !entity.UserType(in.UserType).Valid() {
		fields["userType"] = "must be one of: VENDOR, BUYER"
	}
	if in.PhoneNumber != "" {
		digits := nonDigits.ReplaceAllString(in.PhoneNumber, "")
		if len(digits) != 10 {
			fields["phoneNumber"] = "must contain exactly 10 digits"
		} else {
			in.PhoneNumber = digits
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Register creates a new account and signs it in. Email uniqueness is
// checked up front and enforced again by the database unique index, so
// two concurrent registrations for the same email cannot both succeed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if verr := in.validateAndNormalize(); verr != nil {
		return nil, verr
	}

	if _, err := s.Repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Email:             in.Email,
		PasswordHash:      hash,
		Name:              in.Name,
		UserType:          entity.UserType(in.UserType),
		PreferredLanguage: in.PreferredLanguage,
	}
	if in.PhoneNumber != "" {
		u.PhoneNumber = &in.PhoneNumber
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	res, err := s.issueTokens(u, true)
	if err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventRegistered, UserID: u.ID, Email: u.Email})
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "user_type": u.UserType}).Info("user registered")
	}
	return res, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown
// email and wrong password return the same error so callers cannot
// probe which addresses have accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.Audit.Record(ctx, audit.Event{Kind: audit.EventLoginFailed, Email: email, Detail: "unknown email"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		s.Audit.Record(ctx, audit.Event{Kind: audit.EventLoginFailed, UserID: u.ID, Email: email, Detail: "wrong password"})
		return nil, ErrInvalidCredentials
	}

	res, err := s.issueTokens(u, true)
	if err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventLoginSucceeded, UserID: u.ID, Email: u.Email})
	return res, nil
}

// RefreshAccessToken mints a new access token from a valid refresh
// token. The refresh token itself is not rotated. The user is re-read
// so tokens for deleted accounts stop working at refresh time.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	res, err := s.issueTokens(u, false)
	if err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventTokenRefreshed, UserID: u.ID, Email: u.Email})
	return res, nil
}

func (s *Service) issueTokens(u *entity.User, withRefresh bool) (*AuthResult, error) {
	access, _, err := s.JWT.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return nil, err
	}
	res := &AuthResult{
		User:        NewUserProfile(u),
		AccessToken: access,
		ExpiresIn:   int64(s.JWT.AccessTTL.Seconds()),
	}
	if withRefresh {
		refresh, _, err := s.JWT.GenerateRefreshToken(u.ID, u.Email)
		if err != nil {
			if s.Logger != nil {
				s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
			}
			return nil, err
		}
		res.RefreshToken = refresh
	}
	return res, nil
}

// UpdateLanguage switches the user's preferred language to another
// entry of the supported catalog.
func (s *Service) UpdateLanguage(ctx context.Context, userID, language string) (*UserProfile, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if !entity.IsSupportedLanguage(language) {
		return nil, &ValidationError{Fields: map[string]string{"language": "unsupported language code"}}
	}
	if err := s.Repo.UpdateLanguage(ctx, userID, language); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventLanguageChanged, UserID: userID, Detail: language})
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": userID, "language": language}).Info("language preference updated")
	}
	return NewUserProfile(u), nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return NewUserProfile(u), nil
}

// GetUserByEmail returns the full entity for internal flows that need
// it (verification and reset mail). Not exposed over HTTP.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

type UpdateProfileInput struct {
	Name        string
	PhoneNumber string
}

// UpdateProfile changes name and phone number. Empty fields are left
// untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*UserProfile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		if nonSpaceLen(name) < 2 {
			return nil, &ValidationError{Fields: map[string]string{"name": "must be at least 2 characters long"}}
		}
		u.Name = name
	}
	if phone := strings.TrimSpace(in.PhoneNumber); phone != "" {
		digits := nonDigits.ReplaceAllString(phone, "")
		if len(digits) != 10 {
			return nil, &ValidationError{Fields: map[string]string{"phoneNumber": "must contain exactly 10 digits"}}
		}
		u.PhoneNumber = &digits
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return NewUserProfile(u), nil
}

// UploadAvatar stores the image in GCS under avatars/<userID>/ and
// saves the public URL on the profile.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, id+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	u.AvatarURL = url
	if err := s.Repo.Update(ctx, u); err != nil {
		return "", err
	}
	return url, nil
}

// SetPassword replaces the stored hash after a completed reset flow.
func (s *Service) SetPassword(ctx context.Context, userID, newPassword string) error {
	if nonSpaceLen(newPassword) < 8 {
		return &ValidationError{Fields: map[string]string{"password": "must be at least 8 characters long"}}
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventPasswordReset, UserID: userID})
	return nil
}

// MarkVerified flips the verification flag after a confirmed email.
func (s *Service) MarkVerified(ctx context.Context, userID string) error {
	if err := s.Repo.SetVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.Audit.Record(ctx, audit.Event{Kind: audit.EventEmailVerified, UserID: userID})
	return nil
}
