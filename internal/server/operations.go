package server

import (
	"townsquare/internal/middleware"
	"townsquare/internal/models"
)

// Routed operations. Every route is mounted behind gate.Require with one of these.
const (
	OpLiveness  middleware.OperationID = "health.live"
	OpReadiness middleware.OperationID = "health.ready"

	OpSignup  middleware.OperationID = "auth.signup"
	OpLogin   middleware.OperationID = "auth.login"
	OpRefresh middleware.OperationID = "auth.refresh"

	OpMyProfile      middleware.OperationID = "users.me"
	OpPromotionCheck middleware.OperationID = "users.promotion_check"
	OpGetUser        middleware.OperationID = "users.get"

	OpListPosts     middleware.OperationID = "posts.list"
	OpGetPost       middleware.OperationID = "posts.get"
	OpCreatePost    middleware.OperationID = "posts.create"
	OpCreateComment middleware.OperationID = "comments.create"
	OpGetListing    middleware.OperationID = "market.get"
	OpCreateListing middleware.OperationID = "market.create"

	OpCreateReport middleware.OperationID = "reports.create"

	OpListUsers       middleware.OperationID = "admin.users.list"
	OpListStaff       middleware.OperationID = "admin.users.staff"
	OpSetLevel        middleware.OperationID = "admin.users.set_level"
	OpLiftSuspension  middleware.OperationID = "admin.users.lift_suspension"
	OpListReports     middleware.OperationID = "admin.reports.list"
	OpGetReport       middleware.OperationID = "admin.reports.get"
	OpDecideReport    middleware.OperationID = "admin.reports.decide"
	OpGetFeatureFlags middleware.OperationID = "admin.feature_flags"
)

// Operations is the static access table. Public entries form the exemption
// allow-list; anything not listed here is treated as admin-only by the gate.
func Operations() map[middleware.OperationID]middleware.Policy {
	return map[middleware.OperationID]middleware.Policy{
		OpLiveness:  {Public: true},
		OpReadiness: {Public: true},

		OpSignup:  {Public: true},
		OpLogin:   {Public: true},
		OpRefresh: {Refresh: true},

		OpMyProfile:      {},
		OpPromotionCheck: {},
		OpGetUser:        {},

		OpListPosts:     {Public: true},
		OpGetPost:       {Public: true},
		OpCreatePost:    {},
		OpCreateComment: {},
		OpGetListing:    {Public: true},
		OpCreateListing: {},

		OpCreateReport: {},

		OpListUsers:       {MaxLevel: models.LevelManager},
		OpListStaff:       {MaxLevel: models.LevelManager},
		OpListReports:     {MaxLevel: models.LevelManager},
		OpGetReport:       {MaxLevel: models.LevelManager},
		OpSetLevel:        {MaxLevel: models.LevelAdmin},
		OpLiftSuspension:  {MaxLevel: models.LevelAdmin},
		OpDecideReport:    {MaxLevel: models.LevelAdmin},
		OpGetFeatureFlags: {MaxLevel: models.LevelAdmin},
	}
}
