package httpapi

import (
	"net/http"
	"strings"
	"time"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/health"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"

	"github.com/casbin/casbin/v2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		NewRouter,
	),
	fx.Invoke(registerRoutes),
)

// Router exposes the route groups services attach handlers to. Role groups
// already carry authentication and the role gate.
type Router struct {
	Public     *gin.RouterGroup
	Session    *gin.RouterGroup
	Functions  *gin.RouterGroup
	Employee   *gin.RouterGroup
	Employer   *gin.RouterGroup
	Admin      *gin.RouterGroup
	SuperAdmin *gin.RouterGroup
}

// Routes mounts a service's handlers on the router.
type Routes func(r *Router)

// AsRoutes contributes f to the "http.routes" group.
func AsRoutes(f any) fx.Option {
	return fx.Provide(
		fx.Annotate(f, fx.ResultTags(`group:"http.routes"`)),
	)
}

type EngineParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			zap.L().Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "internal", "message": "internal server error"},
			})
		}),
		otelgin.Middleware(p.Config.AppName),
		cors.New(corsConfig(p.Config.Platform.AllowedOrigins)),
		middleware.Error(),
	)

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/health/liveness", p.Health.Liveness)
	r.GET("/health/readiness", p.Health.Readiness)

	return r
}

func corsConfig(origins string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "apikey", "x-client-info"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
	}
	return cfg
}

type RouterParams struct {
	fx.In
	Engine      *gin.Engine
	Issuer      *security.TokenIssuer
	Enforcer    *casbin.Enforcer
	Revocations *security.SessionStore `optional:"true"`
}

func NewRouter(p RouterParams) *Router {
	var revocations middleware.RevocationChecker
	if p.Revocations != nil {
		revocations = p.Revocations
	}
	return Mount(p.Engine, p.Issuer, revocations, p.Enforcer)
}

// Mount builds the standard group layout on r.
func Mount(r gin.IRouter, issuer *security.TokenIssuer, revocations middleware.RevocationChecker, e *casbin.Enforcer) *Router {
	auth := middleware.Auth(issuer, revocations)
	gate := middleware.Authorize(e)

	api := r.Group("/api/v1")
	return &Router{
		Public:     api,
		Session:    api.Group("", auth),
		Functions:  r.Group("/functions/v1", auth, middleware.Approved()),
		Employee:   api.Group("/employee", auth, gate),
		Employer:   api.Group("/employer", auth, gate),
		Admin:      api.Group("/admin", auth, gate),
		SuperAdmin: api.Group("/super-admin", auth, gate),
	}
}

type routesParams struct {
	fx.In
	Router *Router
	Routes []Routes `group:"http.routes"`
}

func registerRoutes(p routesParams) {
	for _, register := range p.Routes {
		register(p.Router)
	}
	zap.L().Info("http routes registered", zap.Int("services", len(p.Routes)))
}
