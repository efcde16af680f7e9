package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/middleware"
	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// currentClaims extracts the authenticated claims set by the JWT middleware.
func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// actorFrom builds the service-level actor for the current request.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:      claims.UserID,
		Role:        claims.Role,
		BattalionID: claims.BattalionID,
		IP:          c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	}, true
}

// bindJSON decodes the request body into dest and writes the validation
// error response itself on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Query(name), 10, 64)
}
