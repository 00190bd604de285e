package wellness

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAnalyzeEndpointGating(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := setup(t, nil)
	f.chat.EXPECT().Complete(gomock.Any(), systemPrompt, gomock.Any()).Return(mediumAnswer, nil).Times(2)

	issuer, err := security.NewTokenIssuer("test-secret", "test", time.Hour)
	require.NoError(t, err)
	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(f.svc).Register(httpapi.Mount(engine, issuer, nil, enforcer))

	tests := []struct {
		name string
		id   security.Identity
		want int
	}{
		{"pending employee analyzing self", security.Identity{UserID: "E1", Role: "employee", RoleStatus: "pending", CompanyID: "c1"}, http.StatusForbidden},
		{"no role", security.Identity{UserID: "E1"}, http.StatusForbidden},
		{"coworker", security.Identity{UserID: "E2", Role: "employee", RoleStatus: "approved", CompanyID: "c1"}, http.StatusForbidden},
		{"employer of another company", security.Identity{UserID: "B2", Role: "employer", RoleStatus: "approved", CompanyID: "c2"}, http.StatusNotFound},
		{"employer without company", security.Identity{UserID: "B0", Role: "employer", RoleStatus: "approved"}, http.StatusForbidden},
		{"employee analyzing self", security.Identity{UserID: "E1", Role: "employee", RoleStatus: "approved", CompanyID: "c1"}, http.StatusOK},
		{"employer of the company", security.Identity{UserID: "B1", Role: "employer", RoleStatus: "approved", CompanyID: "c1"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := issuer.Issue(tt.id)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/functions/v1/analyze-burnout-risk", bytes.NewBufferString(`{"employeeId":"E1"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			require.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
