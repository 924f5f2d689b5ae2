package server

import (
	"townsquare/internal/middleware"
	"townsquare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	session, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(session)
}

// Refresh handles POST /api/auth/refresh. The gate has already validated the
// refreshToken header; this exchanges it for a new access token.
func (s *Server) Refresh(c *fiber.Ctx) error {
	access, err := s.authService.Refresh(c.UserContext(), c.Get(middleware.RefreshTokenHeader))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"access_token": access})
}
