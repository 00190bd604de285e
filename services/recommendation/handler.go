package recommendation

import (
	"net/http"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/logger"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *httpapi.Router) {
	r.Employee.GET("/recommendations", h.own)
	r.Employee.GET("/recommendations/stream", h.stream)
	r.Employee.POST("/recommendations/:id/accept", h.accept)

	r.Employer.GET("/recommendations", h.list)
	r.Employer.POST("/recommendations", h.approve)
}

func (h *Handler) own(c *gin.Context) {
	out, err := h.svc.ForEmployee(c.Request.Context(), middleware.Claims(c).UserID(), Status(c.Query("status")))
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}

func (h *Handler) accept(c *gin.Context) {
	out, err := h.svc.Accept(c.Request.Context(), middleware.Claims(c).UserID(), c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) stream(c *gin.Context) {
	employeeID := middleware.Claims(c).UserID()
	if err := realtime.Stream(c, h.svc.Bus(), Channel(employeeID)); err != nil {
		logger.FromContext(c.Request.Context()).Warn("failed to open recommendation stream",
			zap.String("employee_id", employeeID), zap.Error(err))
		_ = c.Error(errutil.ServiceUnavailable("realtime channel unavailable", err))
	}
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	filter := Filter{EmployeeID: c.Query("employee_id"), Status: Status(c.Query("status"))}
	out, info, err := h.svc.List(c.Request.Context(), middleware.Claims(c).CompanyID, filter, page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Recommendation]{Data: out, PageInfo: info}, err)
}

func (h *Handler) approve(c *gin.Context) {
	var req ApproveRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	claims := middleware.Claims(c)
	out, err := h.svc.Approve(c.Request.Context(), claims.CompanyID, claims.UserID(), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}
