package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/pressflow/pressflow/internal/auth"
	"github.com/pressflow/pressflow/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthConfig(t *testing.T, password string) config.AuthConfig {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return config.AuthConfig{
		JWTSecret:         "test-secret",
		TokenDuration:     time.Hour,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
	}
}

func doLogin(h *AuthHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLoginVerifiesPasswordAgainstHash(t *testing.T) {
	h := NewAuthHandler(testAuthConfig(t, "s3cret"), testLogger())

	rec := doLogin(h, `{"username":"admin","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	userID, err := auth.ValidateToken(resp.Token, "test-secret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != "admin" {
		t.Errorf("token user = %q, want admin", userID)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := NewAuthHandler(testAuthConfig(t, "s3cret"), testLogger())

	rec := doLogin(h, `{"username":"admin","password":"guess"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsWhenNoPasswordConfigured(t *testing.T) {
	cfg := config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenDuration: time.Hour,
		AdminUsername: "admin",
	}
	h := NewAuthHandler(cfg, testLogger())

	rec := doLogin(h, `{"username":"admin","password":""}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
