package account

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
	r.Public.POST("/auth/signup", h.signup)
	r.Public.POST("/auth/login", h.login)
	r.Session.POST("/auth/logout", h.logout)
	r.Session.GET("/auth/me", h.me)

	r.Employee.GET("/profile", h.ownProfile)
	r.Employee.PATCH("/profile", h.updateOwnProfile)
	r.Employee.GET("/preferences", h.ownPreferences)
	r.Employee.PUT("/preferences", h.putPreferences)

	r.Employer.GET("/employees", h.listEmployees)
	r.Employer.GET("/employees/:id", h.getEmployee)
	r.Employer.PATCH("/employees/:id", h.updateEmployee)
	r.Employer.GET("/employees/:id/preferences", h.employeePreferences)

	r.Admin.GET("/roles", h.listRoles)
	r.Admin.POST("/roles/:user_id/approve", h.decide(true))
	r.Admin.POST("/roles/:user_id/reject", h.decide(false))
	r.Admin.PUT("/roles/:user_id", h.assign(RoleAdmin))

	r.SuperAdmin.PUT("/roles/:user_id", h.assign(RoleSuperAdmin))
}

func (h *Handler) signup(c *gin.Context) {
	var req SignupRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Signup(c.Request.Context(), req)
	httpapi.Result(c, http.StatusCreated, out, err)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.Login(c.Request.Context(), req)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) logout(c *gin.Context) {
	h.svc.Logout(c.Request.Context(), middleware.Claims(c))
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	out, err := h.svc.CurrentUser(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) ownProfile(c *gin.Context) {
	out, err := h.svc.GetProfile(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) updateOwnProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.UpdateProfile(c.Request.Context(), middleware.Claims(c).UserID(), req, false)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) ownPreferences(c *gin.Context) {
	out, err := h.svc.GetPreferences(c.Request.Context(), middleware.Claims(c).UserID())
	httpapi.Result(c, http.StatusOK, gin.H{"preferences": out}, err)
}

func (h *Handler) putPreferences(c *gin.Context) {
	var req PreferenceRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	out, err := h.svc.UpsertPreferences(c.Request.Context(), middleware.Claims(c).UserID(), req)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) listEmployees(c *gin.Context) {
	out, info, err := h.svc.ListEmployees(c.Request.Context(), middleware.Claims(c).CompanyID, httpapi.PageQuery(c))
	httpapi.Result(c, http.StatusOK, httpapi.Page[Profile]{Data: out, PageInfo: info}, err)
}

func (h *Handler) getEmployee(c *gin.Context) {
	out, err := h.svc.GetEmployee(c.Request.Context(), middleware.Claims(c).CompanyID, c.Param("id"))
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) updateEmployee(c *gin.Context) {
	var req UpdateProfileRequest
	if !httpapi.Bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.svc.GetEmployee(ctx, middleware.Claims(c).CompanyID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.UpdateProfile(ctx, c.Param("id"), req, true)
	httpapi.Result(c, http.StatusOK, out, err)
}

func (h *Handler) employeePreferences(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.svc.GetEmployee(ctx, middleware.Claims(c).CompanyID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.GetPreferences(ctx, c.Param("id"))
	httpapi.Result(c, http.StatusOK, gin.H{"preferences": out}, err)
}

func (h *Handler) listRoles(c *gin.Context) {
	out, info, err := h.svc.ListRoles(c.Request.Context(), ApprovalStatus(c.Query("status")), httpapi.PageQuery(c))
	httpapi.Result(c, http.StatusOK, httpapi.Page[UserRole]{Data: out, PageInfo: info}, err)
}

func (h *Handler) decide(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.svc.Decide(c.Request.Context(), middleware.Claims(c).UserID(), c.Param("user_id"), approve)
		httpapi.Result(c, http.StatusOK, out, err)
	}
}

func (h *Handler) assign(actor Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignRoleRequest
		if !httpapi.Bind(c, &req) {
			return
		}
		out, err := h.svc.Assign(c.Request.Context(), actor, middleware.Claims(c).UserID(), c.Param("user_id"), req)
		httpapi.Result(c, http.StatusOK, out, err)
	}
}
