package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campus-connect/campus-api/internal/middleware"
	"github.com/campus-connect/campus-api/internal/models"
)

func TestExportRequestRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/exports", strings.NewReader(`{"kind":"LOANS","format":"CSV"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Request(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportRequestRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/exports", strings.NewReader(`{"kind":`))
	c.Request.Header.Set("Content-Type", "application/json")
	college := "col1"
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, CollegeID: &college})

	handler.Request(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
