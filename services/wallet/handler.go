package wallet

import (
	"net/http"

	"rewards-controlplane/pkg/errutil"
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
	r.Employee.GET("/wallet", h.ownBalance)
	r.Employee.GET("/wallet/transactions", h.ownTransactions)

	r.Employer.GET("/employees/:id/wallet", h.employeeBalance)

	r.Admin.GET("/wallets/:employee_id/verify", h.verify)
}

func (h *Handler) ownBalance(c *gin.Context) {
	out, err := h.svc.Balance(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) ownTransactions(c *gin.Context) {
	page := httpapi.PageQuery(c)
	out, info, err := h.svc.ListTransactions(c.Request.Context(), middleware.Claims(c).UserID(), page)
	httpapi.Result(c, http.StatusOK, httpapi.Page[Transaction]{Data: out, PageInfo: info}, err)
}

func (h *Handler) employeeBalance(c *gin.Context) {
	out, err := h.svc.Balance(c.Request.Context(), c.Param("id"))
	if err == nil && out.CompanyID != "" && out.CompanyID != middleware.Claims(c).CompanyID {
		out, err = nil, errutil.NotFound("wallet not found", nil)
	}
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) verify(c *gin.Context) {
	out, err := h.svc.VerifyChain(c.Request.Context(), c.Param("employee_id"))
	httpapi.Result(c, http.StatusOK, out, err)
}
