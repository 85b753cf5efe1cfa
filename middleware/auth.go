package middleware

import (
	"KBAssist/pkg/config"
	tokenstore "KBAssist/pkg/token"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ContextAdminKey = "current_admin"
	ContextJTIKey   = "current_jti"
	ContextExpKey   = "current_exp"

	RoleAdmin = "admin"
)

// IssueAdminToken signs a bearer token for the admin with the given email.
func IssueAdminToken(email string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  email,
		"role": RoleAdmin,
		"exp":  time.Now().Add(ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
}

// parseAdminToken validates the token and returns its claims.
func parseAdminToken(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if role, _ := claims["role"].(string); role != RoleAdmin {
		return nil, errors.New("admin role required")
	}
	return claims, nil
}

// AdminAuth guards admin routes with an HS256 bearer token.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization header"})
			return
		}

		claims, err := parseAdminToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		// jti
		jtiVal, _ := claims["jti"].(string)
		if tokenstore.IsRevoked(jtiVal) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token has been revoked (logout)"})
			return
		}

		email, _ := claims["sub"].(string)
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid subject in token"})
			return
		}
		var exp time.Time
		if e, err := claims.GetExpirationTime(); err == nil && e != nil {
			exp = e.Time
		}

		// set to context
		c.Set(ContextAdminKey, email)
		c.Set(ContextJTIKey, jtiVal)
		c.Set(ContextExpKey, exp)
		c.Next()
	}
}
