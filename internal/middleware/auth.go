package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zenpa1/budget-tracker/internal/auth"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/models"
)

const (
	userKey = "user"
	issuer  = "budget-tracker-api"
)

// JWTClaims represents the claims in the JWT. The role travels in the token
// so that authorization needs no store round trip.
type JWTClaims struct {
	UserID     string      `json:"user_id"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Role       models.Role `json:"role"`
	Department string      `json:"department"`
	jwt.RegisteredClaims
}

// User rebuilds the authenticated user from the claims.
func (c *JWTClaims) User() *models.User {
	return &models.User{
		Base:       models.Base{ID: c.UserID},
		Email:      c.Email,
		Name:       c.Name,
		Role:       c.Role,
		Department: c.Department,
	}
}

// JWT issues and verifies access tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a token issuer signing with secret. Tokens expire after ttl.
func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken signs an access token for user and returns it with its
// expiry time.
func (j *JWT) GenerateToken(user *models.User) (string, time.Time, error) {
	now := j.now()
	expires := now.Add(j.ttl)
	claims := &JWTClaims{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       user.Role,
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates a token and returns its claims.
func (j *JWT) Parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(j.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid token: missing user or role")
	}
	return claims, nil
}

// bearer extracts the token from the Authorization header. ok is false if
// the header is absent; err is set if it is present but malformed.
func bearer(c *gin.Context) (token string, ok bool, err error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false, nil
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", true, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format")
	}
	return parts[1], true, nil
}

// Authenticate verifies the bearer token and stores the user in the context.
// Requests without a valid token are rejected.
func (j *JWT) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok, err := bearer(c)
		if !ok {
			abort(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}
		if err != nil {
			abort(c, err)
			return
		}

		claims, err := j.Parse(token)
		if err != nil {
			abort(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}
		c.Set(userKey, claims.User())
		c.Next()
	}
}

// OptionalAuthenticate stores the user when a valid token is sent and lets
// anonymous requests through. A token that is sent but invalid is still
// rejected.
func (j *JWT) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok, err := bearer(c)
		if !ok {
			c.Next()
			return
		}
		if err != nil {
			abort(c, err)
			return
		}
		claims, err := j.Parse(token)
		if err != nil {
			abort(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}
		c.Set(userKey, claims.User())
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// RequireCapability rejects requests whose user may not perform action.
func RequireCapability(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Require(CurrentUser(c), action); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// abort records err for ErrorHandler and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
