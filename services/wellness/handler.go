package wellness

import (
	"net/http"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/services/account"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *httpapi.Router) {
	r.Functions.POST("/analyze-burnout-risk", h.analyze)

	r.Employee.GET("/wellness", h.ownHistory)

	r.Employer.GET("/employees/:id/wellness", h.history)
	r.Employer.POST("/employees/:id/wellness", h.record)
	r.Employer.GET("/employees/:id/burnout-predictions", h.predictions)
}

// companyScope limits tenant roles to their own company.
func companyScope(c *gin.Context) string {
	claims := middleware.Claims(c)
	switch account.Role(claims.Role) {
	case account.RoleAdmin, account.RoleSuperAdmin:
		return ""
	default:
		return claims.CompanyID
	}
}

func (h *Handler) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.FunctionError(c, errutil.BadRequest("employeeId is required", err))
		return
	}

	claims := middleware.Claims(c)
	switch account.Role(claims.Role) {
	case account.RoleEmployee:
		if req.EmployeeID != "" && req.EmployeeID != claims.UserID() {
			httpapi.FunctionError(c, errutil.Forbidden("employees may only analyze themselves", nil))
			return
		}
	case account.RoleEmployer:
		if claims.CompanyID == "" {
			httpapi.FunctionError(c, errutil.Forbidden("employer has no company", nil))
			return
		}
	}

	out, err := h.svc.AnalyzeBurnoutRisk(c.Request.Context(), req.EmployeeID, companyScope(c))
	if err != nil {
		httpapi.FunctionError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ownHistory(c *gin.Context) {
	out, err := h.svc.History(c.Request.Context(), middleware.Claims(c).UserID(), 0)
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}

func (h *Handler) history(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.svc.EnsureEmployee(ctx, middleware.Claims(c).CompanyID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.History(ctx, c.Param("id"), 0)
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}

func (h *Handler) record(c *gin.Context) {
	var req ScoreRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.RecordScore(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) predictions(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.svc.EnsureEmployee(ctx, middleware.Claims(c).CompanyID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.Predictions(ctx, c.Param("id"))
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}
