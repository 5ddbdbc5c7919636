package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/models"
)

func setupAuthRouter(handler *AuthHandler, user *models.User) *gin.Engine {
	r := gin.New()
	r.POST("/auth/login", handler.Login)
	r.GET("/profile", injectUser(user), handler.GetProfile)
	r.GET("/capabilities", injectUser(user), handler.GetCapabilities)
	return r
}

func TestAuthHandler_Login(t *testing.T) {
	tokens := middleware.NewJWT("secret", time.Hour)

	t.Run("returns token and user on success", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(email, password string) (*models.User, error) {
				if email != "finance@company.com" || password != "finance123" {
					t.Errorf("unexpected credentials %s/%s", email, password)
				}
				u := testUser(models.RoleFinanceHead)
				u.Email = email
				return u, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockDashboardService{}, tokens), nil)

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"finance@company.com","password":"finance123"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		token, _ := result["token"].(string)
		claims, err := tokens.Parse(token)
		if err != nil {
			t.Fatalf("returned token does not parse: %v", err)
		}
		if claims.Role != models.RoleFinanceHead {
			t.Errorf("expected finance_head claim, got %s", claims.Role)
		}
		user := result["user"].(map[string]interface{})
		if user["role"] != "finance_head" || user["email"] != "finance@company.com" {
			t.Errorf("unexpected user %v", user)
		}
		if _, leaked := user["password"]; leaked {
			t.Error("password hash must not be returned")
		}
	})

	t.Run("returns 401 on invalid credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockDashboardService{}, tokens), nil)

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"finance@company.com","password":"wrong"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_CREDENTIALS")
	})

	t.Run("returns 400 on malformed email", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockDashboardService{}, tokens), nil)

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "VALIDATION_ERROR")
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	tokens := middleware.NewJWT("secret", time.Hour)

	t.Run("returns the stored user", func(t *testing.T) {
		current := testUser(models.RoleHRAdmin)
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				if id != current.ID {
					t.Errorf("expected id %s, got %s", current.ID, id)
				}
				u := *current
				u.Name = "Michael Torres"
				return &u, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockDashboardService{}, tokens), current)

		rec := doRequest(r, http.MethodGet, "/profile", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["name"] != "Michael Torres" {
			t.Errorf("unexpected user %v", user)
		}
	})

	t.Run("returns 401 without a user", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockDashboardService{}, tokens), nil)
		rec := doRequest(r, http.MethodGet, "/profile", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_GetCapabilities(t *testing.T) {
	tokens := middleware.NewJWT("secret", time.Hour)

	r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockDashboardService{}, tokens), nil)
	rec := doRequest(r, http.MethodGet, "/capabilities", "")
	caps := parseJSON(t, rec)["capabilities"].([]interface{})
	if len(caps) != 1 || caps[0] != "submit_feedback" {
		t.Errorf("anonymous caller should only submit feedback, got %v", caps)
	}

	r = setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockDashboardService{}, tokens), testUser(models.RoleFinanceHead))
	result := parseJSON(t, doRequest(r, http.MethodGet, "/capabilities", ""))
	if result["role"] != "finance_head" {
		t.Errorf("expected role finance_head, got %v", result["role"])
	}
	if len(result["capabilities"].([]interface{})) < 2 {
		t.Errorf("finance head should have several capabilities, got %v", result["capabilities"])
	}
}
