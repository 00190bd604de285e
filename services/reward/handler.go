package reward

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
	r.Employee.GET("/packages", h.own)
	r.Employee.POST("/packages/:id/redeem", h.redeem)
	r.Employee.POST("/packages/:id/feedback", h.feedback)

	r.Employer.GET("/packages", h.list)
	r.Employer.POST("/packages", h.create)
	r.Employer.GET("/packages/:id", h.get)
	r.Employer.POST("/packages/:id/submit", h.submit)
	r.Employer.GET("/approvals", h.listApprovals)
	r.Employer.GET("/approvals/:id", h.getApproval)
	r.Employer.POST("/approvals/:id/approve", h.approve)
	r.Employer.POST("/approvals/:id/reject", h.reject)
}

func (h *Handler) own(c *gin.Context) {
	out, err := h.svc.ForEmployee(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, gin.H{"data": out}, err)
}

func (h *Handler) redeem(c *gin.Context) {
	out, err := h.svc.Redeem(c.Request.Context(), middleware.Claims(c).UserID(), c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) feedback(c *gin.Context) {
	var req FeedbackRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Feedback(c.Request.Context(), middleware.Claims(c).UserID(), c.Param("id"), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	filter := Filter{EmployeeID: c.Query("employee_id"), Status: PackageStatus(c.Query("status"))}
	out, info, err := h.svc.List(c.Request.Context(), middleware.Claims(c).CompanyID, filter, page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Package]{Data: out, PageInfo: info}, err)
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

func (h *Handler) submit(c *gin.Context) {
	out, err := h.svc.Submit(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) listApprovals(c *gin.Context) {
	page := httpapi.PageQuery(c)
	status := ApprovalStatus(c.DefaultQuery("status", string(ApprovalPending)))
	out, info, err := h.svc.ListApprovals(c.Request.Context(), middleware.Claims(c).CompanyID, status, page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Approval]{Data: out, PageInfo: info}, err)
}

func (h *Handler) getApproval(c *gin.Context) {
	out, err := h.svc.GetApproval(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) approve(c *gin.Context) {
	var req ApproveRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	claims := middleware.Claims(c)
	out, err := h.svc.Approve(c.Request.Context(), claims.CompanyID, claims.UserID(), c.Param("id"), req)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) reject(c *gin.Context) {
	var req RejectRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	claims := middleware.Claims(c)
	out, err := h.svc.Reject(c.Request.Context(), claims.CompanyID, claims.UserID(), c.Param("id"), req.Comments)
	httpapi.Result(c, http.StatusOK, out, err)
}
