package scheduler

import (
	"net/http"

	"rewards-controlplane/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *httpapi.Router) {
	r.Admin.GET("/jobs", h.list)
	r.Admin.GET("/jobs/:id", h.get)
	r.Admin.POST("/companies/:id/sweeps/:task", h.run)
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	out, info, err := h.svc.ListJobs(c.Request.Context(), JobStatus(c.Query("status")), page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Job]{Data: out, PageInfo: info}, err)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.GetJob(c.Request.Context(), c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) run(c *gin.Context) {
	out, err := h.svc.EnqueueCompany(c.Request.Context(), c.Param("task"), c.Param("id"))
	httpapi.Result(c, http.StatusAccepted, out, err)
}
