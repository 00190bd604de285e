package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/httpapi"
	"rewards-controlplane/pkg/middleware"
	"rewards-controlplane/pkg/security"
	"rewards-controlplane/services/company"
	"rewards-controlplane/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fakeRevoker struct {
	revoked []string
	live    map[string][]string
}

func (f *fakeRevoker) Revoke(_ context.Context, claims *security.Claims) error {
	f.revoked = append(f.revoked, claims.ID)
	return nil
}

func (f *fakeRevoker) Track(_ context.Context, claims *security.Claims) error {
	if f.live == nil {
		f.live = map[string][]string{}
	}
	f.live[claims.UserID()] = append(f.live[claims.UserID()], claims.ID)
	return nil
}

func (f *fakeRevoker) RevokeUser(_ context.Context, userID string) error {
	f.revoked = append(f.revoked, f.live[userID]...)
	delete(f.live, userID)
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	for _, id := range f.revoked {
		if id == jti {
			return true, nil
		}
	}
	return false, nil
}

type fixture struct {
	svc       *Service
	companies *company.Service
	tokens    *security.TokenIssuer
	revoker   *fakeRevoker
	acme      *company.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, &company.Company{}, &Profile{}, &UserRole{}, &EmployeePreference{})
	node := testutil.Node(t)
	companies := company.NewService(company.ServiceParams{DB: db, Node: node, Seq: &testutil.FakeSequence{}})
	tokens, err := security.NewTokenIssuer("test-secret", "test", time.Hour)
	require.NoError(t, err)

	acme, err := companies.Create(context.Background(), company.CreateRequest{Name: "Acme"})
	require.NoError(t, err)

	revoker := &fakeRevoker{}
	return &fixture{
		svc:       New(db, node, tokens, companies, revoker),
		companies: companies,
		tokens:    tokens,
		revoker:   revoker,
		acme:      acme,
	}
}

func TestSignupCreatesPendingEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupRequest{Name: "Ana", Email: " Ana@Example.com ", Password: "longenough", Company: "acme"})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Profile.Email)
	require.Equal(t, RoleEmployee, user.Role.Role)
	require.Equal(t, Pending, user.Role.ApprovalStatus)
	require.Equal(t, f.acme.ID, user.Role.CompanyID)

	_, err = f.svc.Signup(ctx, SignupRequest{Name: "Ana", Email: "ana@example.com", Password: "longenough", Company: "acme"})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Signup(ctx, SignupRequest{Name: "Bo", Email: "bo@example.com", Password: "longenough", Company: "nope"})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupRequest{Name: "Ana", Email: "ana@example.com", Password: "longenough", Company: "acme"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	require.True(t, errutil.Is(err, errutil.StatusUnauthorized))

	session, err := f.svc.Login(ctx, LoginRequest{Email: "ANA@example.com", Password: "longenough"})
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)

	claims, err := f.tokens.Parse(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "employee", claims.Role)
	require.Equal(t, "pending", claims.RoleStatus)
	require.Equal(t, f.acme.ID, claims.CompanyID)
}

func TestCurrentUserWithoutRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := &Profile{ID: "orphan", Name: "Orphan", Email: "orphan@example.com"}
	require.NoError(t, f.svc.profiles.Create(ctx, profile))

	user, err := f.svc.CurrentUser(ctx, "orphan")
	require.Nil(t, user)
	require.True(t, errutil.Is(err, errutil.StatusForbidden))
	require.ErrorIs(t, err, ErrNoRole)
}

func TestDecideAndAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupRequest{Name: "Ana", Email: "ana@example.com", Password: "longenough", Company: "acme"})
	require.NoError(t, err)

	role, err := f.svc.Decide(ctx, "admin-1", user.Profile.ID, true)
	require.NoError(t, err)
	require.Equal(t, Approved, role.ApprovalStatus)

	_, err = f.svc.Decide(ctx, "admin-1", user.Profile.ID, false)
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Assign(ctx, RoleAdmin, "admin-1", user.Profile.ID, AssignRoleRequest{Role: RoleAdmin})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	role, err = f.svc.Assign(ctx, RoleAdmin, "admin-1", user.Profile.ID, AssignRoleRequest{Role: RoleEmployer})
	require.NoError(t, err)
	require.Equal(t, RoleEmployer, role.Role)

	role, err = f.svc.Assign(ctx, RoleSuperAdmin, "root", user.Profile.ID, AssignRoleRequest{Role: RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role.Role)

	_, err = f.svc.Assign(ctx, RoleAdmin, "admin-1", user.Profile.ID, AssignRoleRequest{Role: RoleEmployee})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	_, err = f.svc.Assign(ctx, RoleSuperAdmin, "root", user.Profile.ID, AssignRoleRequest{Role: "owner"})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pref, err := f.svc.GetPreferences(ctx, "e1")
	require.NoError(t, err)
	require.Nil(t, pref)

	_, err = f.svc.UpsertPreferences(ctx, "e1", PreferenceRequest{BudgetMin: 10, BudgetMax: 5})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	pref, err = f.svc.UpsertPreferences(ctx, "e1", PreferenceRequest{PreferredCategories: []string{"travel"}, TravelStyle: "slow"})
	require.NoError(t, err)

	updated, err := f.svc.UpsertPreferences(ctx, "e1", PreferenceRequest{PreferredCategories: []string{"wellness", "family"}})
	require.NoError(t, err)
	require.Equal(t, pref.ID, updated.ID)
	require.Equal(t, []string{"wellness", "family"}, []string(updated.PreferredCategories))
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupRequest{Name: "Ana", Email: "ana@example.com", Password: "longenough", Company: "acme"})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, "admin-1", user.Profile.ID, true)
	require.NoError(t, err)

	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)
	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(f.svc).Register(httpapi.Mount(engine, f.tokens, f.revoker, enforcer))

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ana@example.com","password":"nope-nope"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ana@example.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ana@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var session Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = do(http.MethodGet, "/api/v1/employee/profile", session.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodGet, "/api/v1/employer/employees", session.AccessToken, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/api/v1/auth/logout", session.AccessToken, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(http.MethodGet, "/api/v1/auth/me", session.AccessToken, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleChangeEndsOldSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupRequest{Name: "Bo", Email: "bo@example.com", Password: "longenough", Company: "acme"})
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, RoleAdmin, "admin-1", user.Profile.ID, AssignRoleRequest{Role: RoleEmployer})
	require.NoError(t, err)

	enforcer, err := middleware.NewDefaultEnforcer()
	require.NoError(t, err)
	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(f.svc).Register(httpapi.Mount(engine, f.tokens, f.revoker, enforcer))

	get := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	employer, err := f.svc.Login(ctx, LoginRequest{Email: "bo@example.com", Password: "longenough"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, get("/api/v1/employer/employees", employer.AccessToken))

	_, err = f.svc.Assign(ctx, RoleAdmin, "admin-1", user.Profile.ID, AssignRoleRequest{Role: RoleEmployee})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, get("/api/v1/employer/employees", employer.AccessToken))

	employee, err := f.svc.Login(ctx, LoginRequest{Email: "bo@example.com", Password: "longenough"})
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, get("/api/v1/employer/employees", employee.AccessToken))
	require.Equal(t, http.StatusOK, get("/api/v1/employee/profile", employee.AccessToken))
}

func TestDecideEndsPendingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupRequest{Name: "Cy", Email: "cy@example.com", Password: "longenough", Company: "acme"})
	require.NoError(t, err)
	pending, err := f.svc.Login(ctx, LoginRequest{Email: "cy@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, "admin-1", user.Profile.ID, false)
	require.NoError(t, err)

	claims, err := f.tokens.Parse(pending.AccessToken)
	require.NoError(t, err)
	revoked, err := f.revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)
}
