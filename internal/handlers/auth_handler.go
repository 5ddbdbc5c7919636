package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenpa1/budget-tracker/internal/auth"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	userService      services.UserServicer
	dashboardService services.DashboardServicer
	tokens           *middleware.JWT
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, dashboardService services.DashboardServicer, tokens *middleware.JWT) *AuthHandler {
	return &AuthHandler{userService: userService, dashboardService: dashboardService, tokens: tokens}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Role       models.Role `json:"role"`
	Department string      `json:"department"`
	Avatar     string      `json:"avatar,omitempty"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		Department: u.Department,
		Avatar:     u.Avatar,
	}
}

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// CapabilitiesResponse lists what the caller may do.
type CapabilitiesResponse struct {
	Role         models.Role   `json:"role,omitempty"`
	Capabilities []auth.Action `json:"capabilities"`
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate with one of the configured accounts and get a token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.AttemptLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, expires, err := h.tokens.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, ExpiresAt: expires, User: newUserResponse(user)})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	current := middleware.CurrentUser(c)
	if current == nil {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), current.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// GetCapabilities lists the actions the caller may perform. Anonymous
// callers may only submit feedback.
// @Summary     Get capabilities
// @Description List the actions available to the caller's role
// @Tags        auth
// @Produce     json
// @Success     200 {object} CapabilitiesResponse "Capabilities"
// @Router      /capabilities [get]
func (h *AuthHandler) GetCapabilities(c *gin.Context) {
	user := middleware.CurrentUser(c)
	resp := CapabilitiesResponse{Capabilities: h.dashboardService.Capabilities(user)}
	if user != nil {
		resp.Role = user.Role
	}
	c.JSON(http.StatusOK, resp)
}
