package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReadinessWithDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	h := ProvideHealth(HealthParams{DB: db})
	r := gin.New()
	r.GET("/health/readiness", h.Readiness)
	r.GET("/health/liveness", h.Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, StatusHealthy, body.Status)
	require.Len(t, body.Deps, 1)
	require.Equal(t, "database:sqlite", body.Deps[0].Name)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessClosedDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	result := ProvideHealth(HealthParams{DB: db}).Check(t.Context())
	require.Equal(t, StatusUnhealthy, result.Status)
}
