package company

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
	r.SuperAdmin.POST("/companies", h.create)

	r.Admin.GET("/companies", h.list)
	r.Admin.GET("/companies/:id", h.get)
	r.Admin.PATCH("/companies/:id", h.update)
	r.Admin.POST("/companies/:id/fund", h.fund)

	r.Employer.GET("/company", h.own)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Create(c.Request.Context(), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	out, info, err := h.svc.List(c.Request.Context(), page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Company]{Data: out, PageInfo: info}, err)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) fund(c *gin.Context) {
	var req FundRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Fund(c.Request.Context(), c.Param("id"), req.Amount)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) own(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.Claims(c).CompanyID)
	httpapi.Result(c, http.StatusOK, out, err)
}
