package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"townsquare/internal/config"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/seed"
	"townsquare/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "server-test-secret-0123456789abcdef",
		JWTIssuer:          "townsquare-api",
		JWTAudience:        "townsquare-client",
		AccessTokenMinutes: 30,
		RefreshTokenHours:  12,
		AllowedOrigins:     "http://localhost:5173",
		FeatureFlags:       "auto_promote=on",
		LoginRateLimit:     3,
		ReportRateLimit:    50,
	}
}

type apiFixture struct {
	t       *testing.T
	srv     *Server
	app     *fiber.App
	db      *gorm.DB
	factory *seed.Factory
}

func newAPIFixture(t *testing.T, rdb *redis.Client) *apiFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	return &apiFixture{
		t:       t,
		srv:     srv,
		app:     srv.App(),
		db:      db,
		factory: seed.NewFactory(db, seed.Options{FastHash: true}),
	}
}

func (f *apiFixture) user(level int) *models.User {
	f.t.Helper()
	u, err := f.factory.CreateUser(func(u *models.User) { u.Level = level })
	require.NoError(f.t, err)
	return u
}

func (f *apiFixture) bearer(u *models.User) string {
	f.t.Helper()
	token, err := f.srv.tokens.IssueAccessToken(u.ID, u.Level)
	require.NoError(f.t, err)
	return "Bearer " + token
}

// call performs a request and decodes the JSON response into out when out is non-nil.
func (f *apiFixture) call(method, path, authorization string, body any, out any) int {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set(middleware.AuthorizationHeader, authorization)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestOperations_EveryPolicyIsReachable(t *testing.T) {
	ops := Operations()
	public := 0
	for op, p := range ops {
		if p.Public {
			public++
			assert.Zero(t, p.MaxLevel, "public operation %s must not carry a tier", op)
		}
	}
	assert.Equal(t, 7, public)
	assert.True(t, ops[OpRefresh].Refresh)
	assert.Equal(t, models.LevelAdmin, ops[OpDecideReport].MaxLevel)
}

func TestAPI_SignupLoginAndProfile(t *testing.T) {
	f := newAPIFixture(t, nil)

	status := f.call(http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": "garden_club",
		"email":    "garden@example.com",
		"password": "Tomatoes#2026",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var session struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		User         models.User `json:"user"`
	}
	status = f.call(http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "garden@example.com",
		"password": "Tomatoes#2026",
	}, &session)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.LevelNewcomer, session.User.Level)

	var me models.User
	status = f.call(http.MethodGet, "/api/users/me", "Bearer "+session.AccessToken, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "garden_club", me.Username)

	// The refresh operation reads only the refreshToken header.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set(middleware.RefreshTokenHeader, session.RefreshToken)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	id, err := f.srv.tokens.Validate(refreshed["access_token"])
	require.NoError(t, err)
	assert.Equal(t, me.ID, id.Subject)

	status = f.call(http.MethodPost, "/api/auth/refresh", "Bearer "+session.AccessToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "refresh ignores the Authorization header")
}

func TestAPI_GateAnswersMissingAndInvalidIdentically(t *testing.T) {
	f := newAPIFixture(t, nil)

	var missing, invalid models.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodGet, "/api/users/me", "", nil, &missing))
	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodGet, "/api/users/me", "Bearer not.a.jwt", nil, &invalid))
	assert.Equal(t, missing, invalid)

	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/api/posts", "", nil, nil), "public listing needs no credential")
	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/health/live", "", nil, nil))
}

func TestAPI_TierChecks(t *testing.T) {
	f := newAPIFixture(t, nil)
	member := f.user(models.LevelMember)
	manager := f.user(models.LevelManager)
	admin := f.user(models.LevelAdmin)

	assert.Equal(t, http.StatusForbidden, f.call(http.MethodGet, "/api/admin/reports", f.bearer(member), nil, nil))
	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/api/admin/reports", f.bearer(manager), nil, nil))

	body := fiber.Map{"level": models.LevelManager}
	path := fmt.Sprintf("/api/admin/users/%s/level", member.ID)
	assert.Equal(t, http.StatusForbidden, f.call(http.MethodPut, path, f.bearer(manager), body, nil))

	var updated models.User
	require.Equal(t, http.StatusOK, f.call(http.MethodPut, path, f.bearer(admin), body, &updated))
	assert.Equal(t, models.LevelManager, updated.Level)

	var flags struct {
		Raw map[string]string `json:"raw"`
	}
	require.Equal(t, http.StatusOK, f.call(http.MethodGet, "/api/admin/feature-flags", f.bearer(admin), nil, &flags))
	assert.Equal(t, "on", flags.Raw["auto_promote"])
}

func TestAPI_ModerationEscalatesToSuspension(t *testing.T) {
	f := newAPIFixture(t, nil)
	author := f.user(models.LevelMember)
	reporter := f.user(models.LevelMember)
	admin := f.user(models.LevelAdmin)

	var reportIDs []uint
	for i := 0; i < 6; i++ {
		post, err := f.factory.CreatePost(author)
		require.NoError(t, err)

		var report models.Report
		status := f.call(http.MethodPost, "/api/reports", f.bearer(reporter), fiber.Map{
			"content_type": "post",
			"content_id":   post.ID,
			"reason":       "spam",
		}, &report)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, models.ReportStatusPending, report.Status)
		reportIDs = append(reportIDs, report.ID)
	}

	var waited map[string]any
	path := fmt.Sprintf("/api/admin/reports/%d/decision", reportIDs[0])
	require.Equal(t, http.StatusOK, f.call(http.MethodPost, path, f.bearer(admin), fiber.Map{"action": "wait"}, &waited))
	assert.Equal(t, "pending", waited["status"])

	var last map[string]any
	for _, id := range reportIDs {
		path := fmt.Sprintf("/api/admin/reports/%d/decision", id)
		require.Equal(t, http.StatusOK, f.call(http.MethodPost, path, f.bearer(admin), fiber.Map{"action": "approve"}, &last))
	}
	assert.Equal(t, true, last["suspended"])
	assert.Equal(t, float64(6), last["infraction_count"])

	path = fmt.Sprintf("/api/admin/reports/%d/decision", reportIDs[0])
	assert.Equal(t, http.StatusConflict, f.call(http.MethodPost, path, f.bearer(admin), fiber.Map{"action": "reject"}, nil))
	assert.Equal(t, http.StatusBadRequest, f.call(http.MethodPost, path, f.bearer(admin), fiber.Map{"action": "ban"}, nil))

	var refused models.ErrorResponse
	status := f.call(http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    author.Email,
		"password": seed.DefaultPassword,
	}, &refused)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_SUSPENDED", refused.Code)

	var page struct {
		Reports []models.Report `json:"reports"`
		Total   int64           `json:"total"`
	}
	require.Equal(t, http.StatusOK, f.call(http.MethodGet, "/api/admin/reports?status=approved", f.bearer(admin), nil, &page))
	assert.EqualValues(t, 6, page.Total)

	require.Equal(t, http.StatusOK, f.call(http.MethodDelete,
		fmt.Sprintf("/api/admin/users/%s/suspension", author.ID), f.bearer(admin), nil, nil))
	status = f.call(http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    author.Email,
		"password": seed.DefaultPassword,
	}, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_DeleteDecisionRemovesListing(t *testing.T) {
	f := newAPIFixture(t, nil)
	seller := f.user(models.LevelMember)
	admin := f.user(models.LevelAdmin)

	listing, err := f.factory.CreateMarketListing(seller)
	require.NoError(t, err)
	report, err := f.factory.CreateReport(admin, models.ContentMarket, listing.ID)
	require.NoError(t, err)

	var outcome map[string]any
	path := fmt.Sprintf("/api/admin/reports/%d/decision", report.ID)
	require.Equal(t, http.StatusOK, f.call(http.MethodPost, path, f.bearer(admin), fiber.Map{"action": "delete"}, &outcome))
	assert.Equal(t, "content_deleted", outcome["status"])
	assert.Equal(t, seller.ID, outcome["author_id"])

	assert.Equal(t, http.StatusNotFound, f.call(http.MethodGet, fmt.Sprintf("/api/market/%d", listing.ID), "", nil, nil))
}

func TestAPI_ActivityPromotesNewcomer(t *testing.T) {
	f := newAPIFixture(t, nil)
	newcomer := f.user(models.LevelNewcomer)
	token := f.bearer(newcomer)

	var postIDs []uint
	for i := 0; i < 2; i++ {
		var post models.Post
		require.Equal(t, http.StatusCreated, f.call(http.MethodPost, "/api/posts", token, fiber.Map{
			"title":   fmt.Sprintf("Block party %d", i),
			"content": "Bring a chair",
		}, &post))
		postIDs = append(postIDs, post.ID)
	}
	for _, id := range postIDs {
		require.Equal(t, http.StatusCreated, f.call(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", id), token,
			fiber.Map{"content": "see you there"}, nil))
	}

	var check struct {
		Promoted bool `json:"promoted"`
		Level    int  `json:"level"`
	}
	require.Equal(t, http.StatusOK, f.call(http.MethodPost, "/api/users/me/promotion-check", token, nil, &check))
	assert.False(t, check.Promoted, "promotion already happened on the second comment")
	assert.Equal(t, models.LevelMember, check.Level)

	var post models.Post
	require.Equal(t, http.StatusOK, f.call(http.MethodGet, fmt.Sprintf("/api/posts/%d", postIDs[0]), "", nil, &post))
	assert.Len(t, post.Comments, 1)
}

func TestAPI_LoginIsRateLimited(t *testing.T) {
	// Limits are skipped in development and test environments.
	t.Setenv("APP_ENV", "staging")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newAPIFixture(t, rdb)
	body := fiber.Map{"email": "nobody@example.com", "password": "Wrong-Password-1"}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodPost, "/api/auth/login", "", body, nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, f.call(http.MethodPost, "/api/auth/login", "", body, nil))

	mr.FastForward(6 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodPost, "/api/auth/login", "", body, nil))
}
