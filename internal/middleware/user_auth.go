package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserAuth validates user JWT tokens and injects the userId into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.GetHeader("Authorization"), secret)
		if err != nil {
			abortAuth(c, err)
			return
		}
		if !setIdentity(c, claims) {
			abortAuth(c, errInvalidToken)
			return
		}
		c.Next()
	}
}

// OptionalAuth lets guests through. A token that is present must still be
// valid; a broken token is never silently downgraded to a guest.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.GetHeader("Authorization"), secret)
		if errors.Is(err, errMissingToken) {
			c.Next()
			return
		}
		if err != nil {
			abortAuth(c, err)
			return
		}
		if !setIdentity(c, claims) {
			abortAuth(c, errInvalidToken)
			return
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) bool {
	userID, ok := userIDClaim(claims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}
	c.Set(ContextClaims, claims)
	c.Set(ContextRole, role)
	c.Set(ContextUserID, userID)
	return true
}
