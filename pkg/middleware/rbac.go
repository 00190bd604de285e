package middleware

import (
	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/security"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("middleware", fx.Provide(ProvideEnforcer))

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// Each surface belongs to exactly one role; there is no role inheritance.
var defaultPolicies = [][]string{
	{"employee", "/api/v1/employee/*", "*"},
	{"employer", "/api/v1/employer/*", "*"},
	{"admin", "/api/v1/admin/*", "*"},
	{"super_admin", "/api/v1/super-admin/*", "*"},
}

// ProvideEnforcer loads casbin model and policy files when configured and
// falls back to the built-in route table.
func ProvideEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	ac := cfg.AccessControl
	if ac.Model != "" && ac.Policy != "" {
		zap.L().Info("loading access control from files", zap.String("model", ac.Model), zap.String("policy", ac.Policy))
		return casbin.NewEnforcer(ac.Model, ac.Policy)
	}
	return NewDefaultEnforcer()
}

func NewDefaultEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}
	return e, nil
}

// approvedClaims returns the session claims when they carry an approved
// role, or aborts the request and returns nil.
func approvedClaims(c *gin.Context) *security.Claims {
	claims := Claims(c)
	switch {
	case claims == nil:
		abort(c, errutil.Unauthorized("authentication required", nil))
		return nil
	case claims.Role == "":
		abort(c, errutil.Forbidden("no role assigned", nil))
		return nil
	case claims.RoleStatus != "" && claims.RoleStatus != "approved":
		abort(c, errutil.Forbidden("role pending approval", nil))
		return nil
	}
	return claims
}

// Approved must run after Auth. It admits any approved role, for surfaces
// shared between roles such as /functions/v1.
func Approved() gin.HandlerFunc {
	return func(c *gin.Context) {
		if approvedClaims(c) == nil {
			return
		}
		c.Next()
	}
}

// Authorize must run after Auth. Pending roles are rejected before the
// policy check.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := approvedClaims(c)
		if claims == nil {
			return
		}

		ok, err := e.Enforce(claims.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			abort(c, errutil.Internal("failed to evaluate access policy", err))
			return
		}
		if !ok {
			abort(c, errutil.Forbidden("role not permitted for this resource", nil))
			return
		}

		c.Next()
	}
}
