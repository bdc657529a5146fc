package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUIDParamsRejectsMalformedIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/classes/:id", UUIDParams(), func(c *gin.Context) { c.Status(http.StatusOK) })

	// A malformed identifier never reaches the handler.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/classes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ID")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/classes/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUUIDParamsChecksNestedIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.DELETE("/classes/:id/faculty/:assignment_id", UUIDParams(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/classes/"+uuid.NewString()+"/faculty/oops", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "assignment_id")
}

func TestUUIDParamsIgnoresOpaqueParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/exports/download/:token", UUIDParams(), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/download/signed-token.csv", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
