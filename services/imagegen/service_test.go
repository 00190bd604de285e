package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rewards-controlplane/pkg/ai"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func TestGenerateNullsFailedSlots(t *testing.T) {
	ctrl := gomock.NewController(t)
	images := ai.NewMockImageGenerator(ctrl)
	images.EXPECT().Generate(gomock.Any(), "beach").Return("https://img/beach.png", nil)
	images.EXPECT().Generate(gomock.Any(), "mountain").Return("", errors.New("rate limited"))
	images.EXPECT().Generate(gomock.Any(), "city").Return("https://img/city.png", nil)

	out, err := NewService(images).Generate(context.Background(), []string{"beach", "mountain", "city", " "})
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, "https://img/beach.png", *out[0])
	require.Nil(t, out[1])
	require.Equal(t, "https://img/city.png", *out[2])
	require.Nil(t, out[3])
}

func TestGenerateValidation(t *testing.T) {
	svc := NewService(ai.NewMockImageGenerator(gomock.NewController(t)))

	_, err := svc.Generate(context.Background(), nil)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = svc.Generate(context.Background(), make([]string, MaxPrompts+1))
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

type slowImages struct {
	active, peak atomic.Int32
}

func (s *slowImages) Generate(_ context.Context, prompt string) (string, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return "https://img/" + prompt + ".png", nil
}

func TestGenerateBoundsConcurrency(t *testing.T) {
	images := &slowImages{}
	prompts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	out, err := NewService(images).Generate(context.Background(), prompts)
	require.NoError(t, err)
	require.Len(t, out, len(prompts))
	for i, p := range prompts {
		require.Equal(t, "https://img/"+p+".png", *out[i])
	}
	require.LessOrEqual(t, images.peak.Load(), int32(maxInFlight))
	require.Positive(t, images.peak.Load())
}

func newRouter(t *testing.T, images ai.ImageGenerator) (*gin.Engine, string) {
	t.Helper()
	issuer, err := security.NewTokenIssuer("test-secret", "test", time.Hour)
	require.NoError(t, err)
	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.Error())
	router := httpapi.Mount(engine, issuer, nil, enforcer)
	NewHandler(NewService(images)).Register(router)

	token, _, err := issuer.Issue(security.Identity{UserID: "u1", Role: "employer", RoleStatus: "approved", CompanyID: "c1"})
	require.NoError(t, err)
	return engine, token
}

func TestGenerateEndpointRejectsPendingRole(t *testing.T) {
	issuer, err := security.NewTokenIssuer("test-secret", "test", time.Hour)
	require.NoError(t, err)
	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(NewService(ai.NewMockImageGenerator(gomock.NewController(t)))).Register(httpapi.Mount(engine, issuer, nil, enforcer))

	token, _, err := issuer.Issue(security.Identity{UserID: "u2", Role: "employee", RoleStatus: "pending", CompanyID: "c1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/generate-recommendation-images", bytes.NewReader([]byte(`{"prompts":["a"]}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGenerateEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	images := ai.NewMockImageGenerator(ctrl)
	images.EXPECT().Generate(gomock.Any(), "a").Return("https://img/a.png", nil)
	images.EXPECT().Generate(gomock.Any(), "b").Return("", errors.New("boom"))

	engine, token := newRouter(t, images)

	body, _ := json.Marshal(Request{Prompts: []string{"a", "b"}})
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/generate-recommendation-images", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string][]*string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp["images"], 2)
	require.Equal(t, "https://img/a.png", *resp["images"][0])
	require.Nil(t, resp["images"][1])

	req = httptest.NewRequest(http.MethodPost, "/functions/v1/generate-recommendation-images", bytes.NewReader([]byte(`{"prompts":[]}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"prompts must be a non-empty array"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/functions/v1/generate-recommendation-images", bytes.NewReader(body))
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
