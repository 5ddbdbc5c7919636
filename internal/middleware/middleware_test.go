package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zenpa1/budget-tracker/internal/auth"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var financeHead = &models.User{
	Base:       models.Base{ID: "0190a4e2-0000-7000-8000-000000000001"},
	Email:      "finance@company.com",
	Name:       "Sarah Chen",
	Role:       models.RoleFinanceHead,
	Department: "Finance",
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	handlers = append(handlers, func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user.ID, "role": user.Role})
	})
	r.GET("/test", handlers...)
	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v\nbody: %s", err, rec.Body.String())
	}
	return body.Error.Code
}

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	token, expires, err := j.GenerateToken(financeHead)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Error("expiry should be in the future")
	}

	claims, err := j.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	user := claims.User()
	if user.ID != financeHead.ID || user.Role != models.RoleFinanceHead || user.Name != "Sarah Chen" {
		t.Errorf("unexpected user %+v", user)
	}

	if _, err := NewJWT("other", time.Hour).Parse(token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	j.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := j.GenerateToken(financeHead)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	j.now = time.Now
	if _, err := j.Parse(token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestAuthenticate(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	token, _, _ := j.GenerateToken(financeHead)
	r := newRouter(j.Authenticate())

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(r, tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized && errorCode(t, rec) != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	token, _, _ := j.GenerateToken(financeHead)
	r := newRouter(j.OptionalAuthenticate())

	if rec := get(r, ""); rec.Code != http.StatusOK {
		t.Errorf("anonymous request should pass, got %d", rec.Code)
	}
	if rec := get(r, "Bearer "+token); rec.Code != http.StatusOK {
		t.Errorf("valid token should pass, got %d", rec.Code)
	}
	if rec := get(r, "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token should be rejected, got %d", rec.Code)
	}
}

func TestRequireCapability(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	r := newRouter(j.OptionalAuthenticate(), RequireCapability(auth.ManageBudgets))

	finance, _, _ := j.GenerateToken(financeHead)
	hr := *financeHead
	hr.Role = models.RoleHRAdmin
	hrToken, _, _ := j.GenerateToken(&hr)

	if rec := get(r, "Bearer "+finance); rec.Code != http.StatusOK {
		t.Errorf("finance head should pass, got %d", rec.Code)
	}
	rec := get(r, "Bearer "+hrToken)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "AUTHORIZATION_ERROR" {
		t.Errorf("HR admin should be forbidden, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(r, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous should be unauthorized, got %d", rec.Code)
	}
}

func TestErrorHandler_HidesUnexpectedErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection reset")) })
	r.GET("/conflict", func(c *gin.Context) { _ = c.Error(apperrors.ErrInvalidTransition) })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "INTERNAL_ERROR" {
		t.Errorf("expected generic 500, got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/conflict", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "INVALID_TRANSITION" {
		t.Errorf("expected 409 INVALID_TRANSITION, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequestLogging_LogsRouteNotPath(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/feedback/status/:code", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/feedback/status/FB-2026-001", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/feedback/status/:code" {
		t.Errorf("expected route template, got %v", fields["route"])
	}
	for key, value := range fields {
		if s, ok := value.(string); ok && s == "/feedback/status/FB-2026-001" {
			t.Errorf("field %s leaks the tracking code", key)
		}
	}
}
