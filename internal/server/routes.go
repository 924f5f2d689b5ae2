package server

import (
	"time"

	"townsquare/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	g := s.gate.Require

	app.Get("/health/live", g(OpLiveness), s.LivenessCheck)
	app.Get("/health/ready", g(OpReadiness), s.ReadinessCheck)
	app.Get("/health", g(OpReadiness), s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", g(OpSignup), middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", g(OpLogin), middleware.RateLimit(
		s.redis, s.loginLimit(), 5*time.Minute, "login"), s.Login)
	authGroup.Post("/refresh", g(OpRefresh), s.Refresh)

	users := api.Group("/users")
	users.Get("/me", g(OpMyProfile), s.GetMyProfile)
	users.Post("/me/promotion-check", g(OpPromotionCheck), s.CheckMyPromotion)
	users.Get("/:id", g(OpGetUser), s.GetUserProfile)

	posts := api.Group("/posts")
	posts.Get("/", g(OpListPosts), s.GetPosts)
	posts.Post("/", g(OpCreatePost), middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/comments", g(OpCreateComment), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", g(OpGetPost), s.GetPost)

	market := api.Group("/market")
	market.Post("/", g(OpCreateListing), s.CreateMarketListing)
	market.Get("/:id", g(OpGetListing), s.GetMarketListing)

	api.Post("/reports", g(OpCreateReport), middleware.RateLimit(
		s.redis, s.reportLimit(), time.Hour, "create_report"), s.CreateReport)

	admin := api.Group("/admin")
	admin.Get("/users", g(OpListUsers), s.GetAllUsers)
	admin.Get("/users/staff", g(OpListStaff), s.GetStaff)
	admin.Put("/users/:id/level", g(OpSetLevel), s.SetUserLevel)
	admin.Delete("/users/:id/suspension", g(OpLiftSuspension), s.LiftSuspension)
	admin.Get("/reports", g(OpListReports), s.GetReports)
	admin.Get("/reports/:id", g(OpGetReport), s.GetReport)
	admin.Post("/reports/:id/decision", g(OpDecideReport), s.DecideReport)
	admin.Get("/feature-flags", g(OpGetFeatureFlags), s.GetFeatureFlags)
}

func (s *Server) loginLimit() int {
	if s.config.LoginRateLimit > 0 {
		return s.config.LoginRateLimit
	}
	return 10
}

func (s *Server) reportLimit() int {
	if s.config.ReportRateLimit > 0 {
		return s.config.ReportRateLimit
	}
	return 20
}
