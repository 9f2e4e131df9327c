package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/pkg/helpers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newAuthRouter(mgr *helpers.JWTManager) *gin.Engine {
	r := gin.New()
	r.GET("/protected", Auth(mgr), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID":    c.GetString("userID"),
			"userEmail": c.GetString("userEmail"),
		})
	})
	return r
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	mgr := helpers.NewJWTManager("a-secret", "r-secret", time.Hour, time.Hour)
	r := newAuthRouter(mgr)

	headers := []string{"", "Token abc", "bearer lowercase", "Bearer", "Bearer   "}
	for _, h := range headers {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", h, w.Code)
		}
	}
}

func TestAuthRejectsInvalidTokens(t *testing.T) {
	mgr := helpers.NewJWTManager("a-secret", "r-secret", time.Hour, time.Hour)
	expiredMgr := helpers.NewJWTManager("a-secret", "r-secret", -time.Minute, -time.Minute)
	sharedMgr := helpers.NewJWTManager("shared", "shared", time.Hour, time.Hour)
	otherMgr := helpers.NewJWTManager("other", "other", time.Hour, time.Hour)

	expired, _, _ := expiredMgr.GenerateAccessToken("u1", "a@b.in")
	foreign, _, _ := otherMgr.GenerateAccessToken("u1", "a@b.in")
	refreshAsAccess, _, _ := sharedMgr.GenerateRefreshToken("u1", "a@b.in")

	tests := []struct {
		name  string
		mgr   *helpers.JWTManager
		token string
	}{
		{"garbage", mgr, "not.a.token"},
		{"expired", mgr, expired},
		{"wrong secret", mgr, foreign},
		{"refresh token", sharedMgr, refreshAsAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(tt.mgr)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			var body struct {
				Success bool `json:"success"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if body.Success {
				t.Fatal("success = true on a 401")
			}
		})
	}
}

func TestAuthAdmitsValidToken(t *testing.T) {
	mgr := helpers.NewJWTManager("a-secret", "r-secret", time.Hour, time.Hour)
	r := newAuthRouter(mgr)

	token, _, err := mgr.GenerateAccessToken("user-42", "meera@example.in")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	var body struct {
		UserID    string `json:"userID"`
		UserEmail string `json:"userEmail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.UserID != "user-42" || body.UserEmail != "meera@example.in" {
		t.Fatalf("identity not propagated: %+v", body)
	}
}
