package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/campus-connect/campus-api/pkg/errors"
	"github.com/campus-connect/campus-api/pkg/response"
)

// UUIDParams rejects requests whose identifier path parameters are not valid
// UUIDs before any handler queries the database. Parameters named "id" or
// ending in "_id" are checked; opaque parameters such as download tokens are
// not.
func UUIDParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			if p.Key != "id" && !strings.HasSuffix(p.Key, "_id") {
				continue
			}
			if _, err := uuid.Parse(p.Value); err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrInvalidID, "malformed "+p.Key+" path parameter"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
