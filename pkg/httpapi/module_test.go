package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func TestMountGatesEveryAuthenticatedGroup(t *testing.T) {
	issuer, err := security.NewTokenIssuer("secret", "test", time.Hour)
	require.NoError(t, err)
	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.Error())
	r := Mount(engine, issuer, nil, enforcer)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.Session.GET("/auth/me", ok)
	r.Functions.POST("/analyze-burnout-risk", ok)
	r.Employee.GET("/ping", ok)

	send := func(method, path string, id security.Identity) int {
		token, _, err := issuer.Issue(id)
		require.NoError(t, err)
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	pending := security.Identity{UserID: "u1", Role: "employee", RoleStatus: "pending", CompanyID: "c1"}
	require.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/auth/me", pending))
	require.Equal(t, http.StatusForbidden, send(http.MethodGet, "/api/v1/employee/ping", pending))
	require.Equal(t, http.StatusForbidden, send(http.MethodPost, "/functions/v1/analyze-burnout-risk", pending))

	approved := security.Identity{UserID: "u1", Role: "employee", RoleStatus: "approved", CompanyID: "c1"}
	require.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/employee/ping", approved))
	require.Equal(t, http.StatusOK, send(http.MethodPost, "/functions/v1/analyze-burnout-risk", approved))
}
