package inquiry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"
	"rewards-controlplane/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func TestContactFlow(t *testing.T) {
	db := testutil.NewTestDB(t, &Inquiry{})
	issuer, err := security.NewTokenIssuer("test-secret", "test", time.Hour)
	require.NoError(t, err)
	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(NewService(db, testutil.Node(t))).Register(httpapi.Mount(engine, issuer, nil, enforcer))

	do := func(method, path, token string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	body, _ := json.Marshal(Request{Name: "Rina", Email: "Rina@Example.com", Company: "Acme", Message: "We have 40 staff."})
	w := do(http.MethodPost, "/api/v1/contact", "", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(http.MethodPost, "/api/v1/contact", "", []byte(`{"name":"x","email":"not-an-email","message":"hi"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodGet, "/api/v1/admin/inquiries", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	employee, _, err := issuer.Issue(security.Identity{UserID: "u1", Role: "employee", RoleStatus: "approved", CompanyID: "c1"})
	require.NoError(t, err)
	w = do(http.MethodGet, "/api/v1/admin/inquiries", employee, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	admin, _, err := issuer.Issue(security.Identity{UserID: "a1", Role: "admin", RoleStatus: "approved"})
	require.NoError(t, err)
	w = do(http.MethodGet, "/api/v1/admin/inquiries", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page httpapi.Page[Inquiry]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, "rina@example.com", page.Data[0].Email)
}
