package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"impactflow/api/internal/config"
	"impactflow/api/internal/models"
	"impactflow/api/internal/security"
	"impactflow/api/internal/store"
)

// Auth verifies the bearer token and loads the current account from the
// gateway, so downstream handlers always see fresh role and approval fields
// rather than the snapshot baked into the token.
func Auth(cfg config.SecurityConfig, users *store.Collection[models.User]) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_not_found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		// The token was issued to a verified, non-gated account, but both can
		// regress between issuance and use (demotion, manual store edits).
		if !user.IsVerified {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_not_verified"})
			return
		}
		if user.Role == models.RoleAdmin && !user.IsAdminApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "approval_pending"})
			return
		}

		c.Set("access_claims", *claims)
		c.Set("current_user", user)

		c.Next()
	}
}

// CurrentUser returns the account the Auth middleware loaded.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// RequireRoles rejects requests whose account holds none of the given roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if _, ok := roleSet[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
