package auth

import (
	"net/http"
	"strings"

	"github.com/abduss/filehub/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userContextKey = "filehubUser"

const bearerPrefix = "bearer "

// ContextUser is the authenticated principal stored on the gin context.
type ContextUser struct {
	ID    string
	Email string
}

// AuthMiddleware rejects requests without a valid bearer token. Accepted
// requests carry the user on the gin context and a request logger tagged
// with the user id.
func AuthMiddleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token"})
			return
		}

		claims, err := service.ValidateAccessToken(token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("rejected access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		user := ContextUser{ID: claims.UserID.String(), Email: claims.Email}
		c.Set(userContextKey, user)

		ctx := c.Request.Context()
		reqLogger := logger.FromContext(ctx).With(zap.String("user_id", user.ID))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (ContextUser, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return ContextUser{}, false
	}
	user, ok := value.(ContextUser)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
