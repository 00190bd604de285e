package inquiry

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
	r.Public.POST("/contact", h.submit)
	r.Admin.GET("/inquiries", h.list)
}

func (h *Handler) submit(c *gin.Context) {
	var req Request
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Submit(c.Request.Context(), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) list(c *gin.Context) {
	out, info, err := h.svc.List(c.Request.Context(), httpapi.PageQuery(c))
	httpapi.Result(c, http.StatusOK, httpapi.Page[Inquiry]{Data: out, PageInfo: info}, err)
}
