package milestone

import (
	"net/http"

	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *httpapi.Router) {
	r.Employee.GET("/milestones", h.own)

	r.Employer.GET("/milestones", h.list)
	r.Employer.POST("/milestones", h.create)
	r.Employer.GET("/milestones/:id", h.get)
	r.Employer.PATCH("/milestones/:id/status", h.updateStatus)
	r.Employer.POST("/hris-events", h.recordEvent)
}

func (h *Handler) own(c *gin.Context) {
	out, err := h.svc.ForEmployee(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	filter := Filter{EmployeeID: c.Query("employee_id"), Status: Status(c.Query("status"))}
	out, info, err := h.svc.List(c.Request.Context(), middleware.Claims(c).CompanyID, filter, page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Milestone]{Data: out, PageInfo: info}, err)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Create(c.Request.Context(), middleware.Claims(c).CompanyID, req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req StatusRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.UpdateStatus(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"), req.Status)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) recordEvent(c *gin.Context) {
	var req EventRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.RecordEvent(c.Request.Context(), middleware.Claims(c).CompanyID, SourceHRIS, req)
	httpapi.Result(c, http.StatusCreated, out, err)
}
