package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// ContextUserKey is the gin context key holding the authenticated subject
const ContextUserKey = "user"

// AdminClaims are the claims of an admin token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminRole is the only role allowed on admin routes
const AdminRole = "admin"

// IssueAdminToken signs an admin token for subject, valid for ttl
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAdminToken validates an HS256 admin token and returns its claims
func ParseAdminToken(secret, token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Role != AdminRole {
		return nil, errors.New("token is not an admin token")
	}
	return claims, nil
}

// AdminAuth middleware requires a valid admin bearer token. An empty secret disables the
// routes behind it entirely.
func AdminAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			response.Error(c, http.StatusServiceUnavailable, "Admin API disabled: jwt_secret is not configured")
		}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.Unauthorized(c, "Missing bearer token")
			return
		}

		claims, err := ParseAdminToken(secret, token)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			return
		}

		c.Set(ContextUserKey, claims.Subject)
		c.Next()
	}
}
