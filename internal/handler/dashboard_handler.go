package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-connect/campus-api/internal/models"
	"github.com/campus-connect/campus-api/internal/service"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
	"github.com/campus-connect/campus-api/pkg/response"
)

// DashboardHandler exposes headline counts per college.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary College dashboard summary
// @Tags Dashboard
// @Produce json
// @Param college_id query string false "College ID (admins only, defaults to own college)"
// @Success 200 {object} response.Envelope{data=models.DashboardSummary}
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	collegeID := strings.TrimSpace(c.Query("college_id"))
	if collegeID != "" && claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only administrators may inspect other colleges"))
		return
	}
	if collegeID == "" {
		if claims.CollegeID == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "account is not linked to a college"))
			return
		}
		collegeID = *claims.CollegeID
	}

	summary, err := h.service.Summary(c.Request.Context(), collegeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
