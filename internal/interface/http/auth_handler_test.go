package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lokbazaar-backend/config"
	"lokbazaar-backend/internal/application"
	"lokbazaar-backend/internal/domain/entity"
	"lokbazaar-backend/internal/domain/repository"
	"lokbazaar-backend/internal/interface/middleware"
	"lokbazaar-backend/pkg/helpers"
	"lokbazaar-backend/pkg/mailer"
	tpl "lokbazaar-backend/pkg/mailer/templates"
	"lokbazaar-backend/pkg/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validation.Init()
	os.Exit(m.Run())
}

// memRepo is an in-memory UserRepository for endpoint tests.
type memRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]entity.User
}

func newMemRepo() *memRepo { return &memRepo{users: map[string]entity.User{}} }

func (f *memRepo) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.users {
		if e.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	f.seq++
	u.ID = fmt.Sprintf("user-%d", f.seq)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = *u
	return nil
}

func (f *memRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (f *memRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *memRepo) Update(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	f.users[u.ID] = *u
	return nil
}

func (f *memRepo) UpdateLanguage(_ context.Context, id, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PreferredLanguage = language
	f.users[id] = u
	return nil
}

func (f *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f *memRepo) SetVerified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = true
	f.users[id] = u
	return nil
}

func (f *memRepo) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

var _ repository.UserRepository = (*memRepo)(nil)

// fakePublisher records enqueued mail jobs in place of RabbitMQ.
type fakePublisher struct {
	mu   sync.Mutex
	err  error
	jobs []mailer.EmailJob
}

func (p *fakePublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	job, ok := body.(mailer.EmailJob)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", body)
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *fakePublisher) take() []mailer.EmailJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mailer.EmailJob(nil), p.jobs...)
}

var _ JobPublisher = (*fakePublisher)(nil)

type testEnv struct {
	r    *gin.Engine
	repo *memRepo
	pub  *fakePublisher
}

func newTestEnv(mailEnabled bool) *testEnv {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mgr := helpers.NewJWTManager("test-access", "test-refresh", 15*time.Minute, 168*time.Hour)
	repo := newMemRepo()
	pub := &fakePublisher{}
	svc := application.NewService(repo, mgr, nil, "", logger, nil)
	h := NewAuthHandler(svc, &config.Config{MailSendEnabled: mailEnabled, AppName: "LokBazaar"}, pub, nil, logger)

	r := gin.New()
	auth := r.Group("/api/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)

	protected := auth.Group("")
	protected.Use(middleware.Auth(mgr))
	protected.POST("/logout", h.Logout)
	protected.PUT("/language", h.UpdateLanguage)
	protected.GET("/me", h.Me)
	return &testEnv{r: r, repo: repo, pub: pub}
}

func newTestRouter() *gin.Engine { return newTestEnv(false).r }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type authPayload struct {
	User struct {
		ID                string `json:"id"`
		Email             string `json:"email"`
		Name              string `json:"name"`
		UserType          string `json:"userType"`
		PreferredLanguage string `json:"preferredLanguage"`
		PhoneNumber       string `json:"phoneNumber"`
		IsVerified        bool   `json:"isVerified"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if s, ok := body.(string); ok {
		rd = strings.NewReader(s)
	} else if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func registerBody() gin.H {
	return gin.H{
		"email":             "kavita@example.in",
		"password":          "kavita-secret-9",
		"name":              "Kavita Rao",
		"userType":          "VENDOR",
		"preferredLanguage": "kn",
		"phoneNumber":       "98-7654-3210",
	}
}

func registerUser(t *testing.T, r http.Handler) authPayload {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", registerBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	var p authPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("bad register payload: %v", err)
	}
	return p
}

func TestRegisterEndpoint(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	if p.User.Email != "kavita@example.in" || p.User.UserType != "VENDOR" {
		t.Errorf("user = %+v", p.User)
	}
	if p.User.PhoneNumber != "9876543210" {
		t.Errorf("phoneNumber = %q", p.User.PhoneNumber)
	}
	if p.User.IsVerified {
		t.Error("new account must start unverified")
	}
	if p.AccessToken == "" || p.RefreshToken == "" {
		t.Fatal("tokens missing from registration response")
	}
	if p.ExpiresIn != 900 {
		t.Errorf("expiresIn = %d, want 900", p.ExpiresIn)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	r := newTestRouter()
	body := registerBody()
	body["email"] = "not-an-email"
	body["password"] = "short"

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.Success {
		t.Fatal("success = true on validation failure")
	}
	var fields map[string]string
	if err := json.Unmarshal(env.Error, &fields); err != nil {
		t.Fatalf("error is not a field map: %s", env.Error)
	}
	for _, f := range []string{"email", "password"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("field %q not flagged: %v", f, fields)
		}
	}
}

func TestRegisterEndpointMalformedJSON(t *testing.T) {
	r := newTestRouter()
	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", `{"email": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var fields map[string]string
	if err := json.Unmarshal(env.Error, &fields); err != nil {
		t.Fatalf("error is not a field map: %s", env.Error)
	}
	if fields["payload"] == "" {
		t.Fatalf("payload error missing: %v", fields)
	}
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	r := newTestRouter()
	registerUser(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", registerBody())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.Message != "Email already registered" {
		t.Fatalf("message = %q", env.Message)
	}
	var errStr string
	if err := json.Unmarshal(env.Error, &errStr); err != nil {
		t.Fatalf("error is not a string: %s", env.Error)
	}
	if errStr != "Email already registered" {
		t.Fatalf("error = %q", errStr)
	}
}

func TestLoginEndpoint(t *testing.T) {
	r := newTestRouter()
	registerUser(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "KAVITA@example.in",
		"password": "kavita-secret-9",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var p authPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("bad login payload: %v", err)
	}
	if p.AccessToken == "" || p.RefreshToken == "" {
		t.Fatal("tokens missing from login response")
	}
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	r := newTestRouter()
	registerUser(t, r)

	bodies := []gin.H{
		{"email": "kavita@example.in", "password": "wrong-password"},
		{"email": "nobody@example.in", "password": "kavita-secret-9"},
	}
	for _, body := range bodies {
		w, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if env.Success {
			t.Fatal("success = true on failed login")
		}
		var errStr string
		if err := json.Unmarshal(env.Error, &errStr); err != nil {
			t.Fatalf("error is not a string: %s", env.Error)
		}
		if errStr != "Invalid email or password" {
			t.Fatalf("error = %q, want the uniform credentials message", errStr)
		}
	}
}

func TestRefreshEndpoint(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": p.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res authPayload
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("bad refresh payload: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("no new access token")
	}
	if strings.Contains(string(env.Data), "refreshToken") {
		t.Fatal("refresh response must not carry a refresh token")
	}
}

func TestRefreshEndpointRejectsAccessToken(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": p.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRefreshEndpointMissingToken(t *testing.T) {
	r := newTestRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/logout", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated logout: status = %d, want 401", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/logout", p.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var data struct {
		LoggedOut bool `json:"logged_out"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || !data.LoggedOut {
		t.Fatalf("logout payload = %s (err %v)", env.Data, err)
	}
}

func TestUpdateLanguageEndpoint(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	w, env := doJSON(t, r, http.MethodPut, "/api/auth/language", p.AccessToken, gin.H{"language": "ta"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var profile struct {
		PreferredLanguage string `json:"preferredLanguage"`
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if profile.PreferredLanguage != "ta" {
		t.Fatalf("preferredLanguage = %q, want ta", profile.PreferredLanguage)
	}
}

func TestUpdateLanguageEndpointRejectsUnknownCode(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	// passes the shape check but is not in the catalog
	w, _ := doJSON(t, r, http.MethodPut, "/api/auth/language", p.AccessToken, gin.H{"language": "xx"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	// fails the shape check outright
	w, _ = doJSON(t, r, http.MethodPut, "/api/auth/language", p.AccessToken, gin.H{"language": "h"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	r := newTestRouter()
	p := registerUser(t, r)

	w, env := doJSON(t, r, http.MethodGet, "/api/auth/me", p.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if profile.ID != p.User.ID || profile.Email != "kavita@example.in" {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestRegisterEnqueuesWelcomeEmail(t *testing.T) {
	env := newTestEnv(true)
	p := registerUser(t, env.r)

	jobs := env.pub.take()
	if len(jobs) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(jobs))
	}
	job := jobs[0]
	if job.To != p.User.Email {
		t.Errorf("job.To = %q, want %q", job.To, p.User.Email)
	}
	if job.Template != tpl.Welcome {
		t.Errorf("job.Template = %q, want %q", job.Template, tpl.Welcome)
	}
	if job.Data["Name"] != "Kavita Rao" {
		t.Errorf("job.Data[Name] = %v", job.Data["Name"])
	}
}

func TestRegisterMailGatedByConfig(t *testing.T) {
	env := newTestEnv(false)
	registerUser(t, env.r)

	if jobs := env.pub.take(); len(jobs) != 0 {
		t.Fatalf("mail disabled but %d jobs queued", len(jobs))
	}
}

func TestRegisterToleratesNilPublisher(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mgr := helpers.NewJWTManager("test-access", "test-refresh", 15*time.Minute, 168*time.Hour)
	svc := application.NewService(newMemRepo(), mgr, nil, "", logger, nil)
	h := NewAuthHandler(svc, &config.Config{MailSendEnabled: true}, nil, nil, logger)

	r := gin.New()
	r.POST("/api/auth/register", h.Register)

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/register", "", registerBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
}

func TestRegisterSurvivesEnqueueFailure(t *testing.T) {
	env := newTestEnv(true)
	env.pub.err = errors.New("broker down")

	registerUser(t, env.r)
}

func TestDeletedUserSessionsAreUnauthorized(t *testing.T) {
	env := newTestEnv(false)
	p := registerUser(t, env.r)
	env.repo.remove(p.User.ID)

	w, _ := doJSON(t, env.r, http.MethodGet, "/api/auth/me", p.AccessToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me: status = %d, want 401", w.Code)
	}
	w, _ = doJSON(t, env.r, http.MethodPut, "/api/auth/language", p.AccessToken, gin.H{"language": "ta"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("language: status = %d, want 401", w.Code)
	}
	w, _ = doJSON(t, env.r, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": p.RefreshToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh: status = %d, want 401", w.Code)
	}
}
