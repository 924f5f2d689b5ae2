package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"townsquare/internal/auth"
	"townsquare/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	opHealth  OperationID = "health"
	opRefresh OperationID = "auth.refresh"
	opProfile OperationID = "users.me"
	opDecide  OperationID = "admin.reports.decide"
)

func newGateFixture(t *testing.T) (*Gate, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.Config{
		Secret:     "gate-test-secret-0123456789abcdef",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "townsquare-api",
		Audience:   "townsquare-client",
	})
	require.NoError(t, err)

	reg := NewRegistry(map[OperationID]Policy{
		opHealth:  {Public: true},
		opRefresh: {Refresh: true},
		opProfile: {},
		opDecide:  {MaxLevel: models.LevelAdmin},
	})
	return NewGate(reg, tokens), tokens
}

func TestGate_Authorize(t *testing.T) {
	t.Parallel()
	gate, tokens := newGateFixture(t)

	member, err := tokens.IssueAccessToken("member-1", models.LevelMember)
	require.NoError(t, err)
	admin, err := tokens.IssueAccessToken("admin-1", models.LevelAdmin)
	require.NoError(t, err)
	refresh, err := tokens.IssueRefreshToken("member-1", models.LevelMember)
	require.NoError(t, err)

	tests := []struct {
		name        string
		op          OperationID
		authz       string
		refresh     string
		wantErr     error
		wantSubject string
	}{
		{name: "public needs nothing", op: opHealth},
		{name: "public ignores garbage", op: opHealth, authz: "Bearer junk"},
		{name: "missing credential", op: opProfile, wantErr: models.ErrMissingCredential},
		{name: "blank bearer is missing", op: opProfile, authz: "Bearer ", wantErr: models.ErrMissingCredential},
		{name: "bare scheme is missing", op: opProfile, authz: "bearer", wantErr: models.ErrMissingCredential},
		{name: "invalid credential", op: opProfile, authz: "Bearer junk", wantErr: models.ErrInvalidCredential},
		{name: "valid access token", op: opProfile, authz: "Bearer " + member, wantSubject: "member-1"},
		{name: "refresh token in authorization field", op: opProfile, authz: refresh, wantErr: models.ErrInvalidCredential},
		{name: "refresh op reads refresh field", op: opRefresh, refresh: refresh, wantSubject: "member-1"},
		{name: "refresh op ignores authorization field", op: opRefresh, authz: member, wantErr: models.ErrMissingCredential},
		{name: "refresh op rejects access token", op: opRefresh, refresh: member, wantErr: models.ErrInvalidCredential},
		{name: "admin op allows admin", op: opDecide, authz: admin, wantSubject: "admin-1"},
		{name: "admin op forbids member", op: opDecide, authz: member, wantErr: models.ErrInsufficientPrivilege},
		{name: "unregistered op fails closed", op: "nope", authz: member, wantErr: models.ErrInsufficientPrivilege},
		{name: "unregistered op without credential", op: "nope", wantErr: models.ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := gate.Authorize(tt.op, tt.authz, tt.refresh)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, id.Subject)
		})
	}
}

func TestGate_Require(t *testing.T) {
	t.Parallel()
	gate, tokens := newGateFixture(t)

	app := fiber.New()
	app.Get("/me", gate.Require(opProfile), func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": id.Subject, "level": id.Level})
	})
	app.Post("/decide", gate.Require(opDecide), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/health", gate.Require(opHealth), func(c *fiber.Ctx) error {
		_, ok := IdentityFrom(c)
		assert.False(t, ok)
		return c.SendStatus(fiber.StatusOK)
	})

	do := func(method, path, authz string) (int, string) {
		req := httptest.NewRequest(method, path, nil)
		if authz != "" {
			req.Header.Set(AuthorizationHeader, authz)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	member, err := tokens.IssueAccessToken("member-1", models.LevelMember)
	require.NoError(t, err)

	status, body := do(http.MethodGet, "/me", "Bearer "+member)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"id":"member-1"`)

	missingStatus, missingBody := do(http.MethodGet, "/me", "")
	invalidStatus, invalidBody := do(http.MethodGet, "/me", "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, missingStatus)
	assert.Equal(t, missingStatus, invalidStatus)
	assert.Equal(t, missingBody, invalidBody, "missing and invalid credentials must be indistinguishable")

	status, _ = do(http.MethodPost, "/decide", member)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestRegistry_IsImmutableCopy(t *testing.T) {
	t.Parallel()
	src := map[OperationID]Policy{"a": {Public: true}}
	reg := NewRegistry(src)
	src["a"] = Policy{}
	src["b"] = Policy{Public: true}

	p, ok := reg.Policy("a")
	assert.True(t, ok)
	assert.True(t, p.Public)
	_, ok = reg.Policy("b")
	assert.False(t, ok)
	assert.Len(t, reg.Operations(), 1)
}
