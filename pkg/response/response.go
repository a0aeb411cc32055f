package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/policy"
	"github.com/improvdb/improvdb-api/pkg/apperror"
	"github.com/improvdb/improvdb-api/pkg/logger"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetPrincipal builds the acting principal from the request context. A nil
// principal (no error) means the caller is anonymous; only routes behind
// RequireAuth can rely on a non-nil result.
func GetPrincipal(c *gin.Context) *policy.Principal {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return nil
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return nil
	}

	role := entity.RoleUser
	if r, ok := c.Get("user_role"); ok {
		if rs, ok := r.(string); ok && rs != "" {
			role = rs
		}
	}

	return &policy.Principal{ID: userID, Role: role}
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code >= 500 {
		logger.L().Error("internal error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
