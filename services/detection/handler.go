package detection

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
	r.Employer.POST("/detection-cycles", h.start)
	r.Employer.GET("/detection-cycles", h.list)
	r.Employer.GET("/detection-cycles/:id", h.get)
	r.Employer.POST("/detection-cycles/:id/cancel", h.cancel)
	r.Employer.POST("/detection-cycles/:id/retry", h.retry)
}

func (h *Handler) start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength > 0 && !httpapi.Bind(c, &req) {
		return
	}
	claims := middleware.Claims(c)
	out, err := h.svc.Start(c.Request.Context(), claims.CompanyID, claims.UserID(), req)
	httpapi.Result(c, http.StatusAccepted, out, err)
}

func (h *Handler) list(c *gin.Context) {
	page := httpapi.PageQuery(c)
	out, info, err := h.svc.List(c.Request.Context(), middleware.Claims(c).CompanyID, State(c.Query("state")), page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Cycle]{Data: out, PageInfo: info}, err)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) cancel(c *gin.Context) {
	out, err := h.svc.Cancel(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) retry(c *gin.Context) {
	claims := middleware.Claims(c)
	out, err := h.svc.Retry(c.Request.Context(), claims.CompanyID, claims.UserID(), c.Param("id"))
	httpapi.Result(c, http.StatusAccepted, out, err)
}
