package imagegen

import (
	"net/http"

	"rewards-controlplane/pkg/errutil"
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
	r.Functions.POST("/generate-recommendation-images", h.generate)
}

func (h *Handler) generate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.FunctionError(c, errutil.BadRequest("prompts must be a non-empty array", err))
		return
	}

	images, err := h.svc.Generate(c.Request.Context(), req.Prompts)
	if err != nil {
		httpapi.FunctionError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Images: images})
}
