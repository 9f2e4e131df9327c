package templates

import (
	"strings"
	"testing"
	"time"

	"lokbazaar-backend/config"
)

func testCfg() *config.Config {
	return &config.Config{
		AppName:    "LokBazaar",
		SupportURL: "https://lokbazaar.in/support",
	}
}

func TestRenderWelcome(t *testing.T) {
	data := NewWelcomeData(testCfg(), "Kavita Rao", "kavita@example.in")
	subject, text, html, err := Render(Welcome, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" || text == "" || html == "" {
		t.Fatal("all three parts must render")
	}
	if !strings.Contains(text, "Kavita Rao") {
		t.Errorf("text does not greet the user: %q", text)
	}
	if !strings.Contains(subject, "LokBazaar") {
		t.Errorf("subject missing app name: %q", subject)
	}
}

func TestRenderVerifyEmail(t *testing.T) {
	data := NewVerifyEmailData(testCfg(), "Kavita Rao", "kavita@example.in",
		"https://lokbazaar.in/verify?token=abc", WithExpiresIn(24*time.Hour))
	subject, text, html, err := Render(VerifyEmail, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" {
		t.Fatal("empty subject")
	}
	for _, part := range []string{text, html} {
		if !strings.Contains(part, "https://lokbazaar.in/verify?token=abc") {
			t.Error("verification link missing from body")
		}
	}
}

func TestRenderPasswordReset(t *testing.T) {
	data := NewPasswordResetData(testCfg(), "Kavita Rao", "kavita@example.in",
		"https://lokbazaar.in/reset?token=xyz", WithExpiresIn(30*time.Minute))
	subject, text, html, err := Render(PasswordReset, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" {
		t.Fatal("empty subject")
	}
	for _, part := range []string{text, html} {
		if !strings.Contains(part, "https://lokbazaar.in/reset?token=xyz") {
			t.Error("reset link missing from body")
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, _, err := Render("no_such_template", map[string]any{}); err == nil {
		t.Fatal("unknown template must fail")
	}
}

// The app name falls back inside the template when config leaves it empty.
func TestRenderDefaultsAppName(t *testing.T) {
	data := NewWelcomeData(&config.Config{}, "Kavita Rao", "kavita@example.in")
	subject, _, _, err := Render(Welcome, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(subject, "LokBazaar") {
		t.Errorf("subject missing fallback app name: %q", subject)
	}
}
