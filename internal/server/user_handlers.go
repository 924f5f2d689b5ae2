package server

import "github.com/gofiber/fiber/v2"

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), callerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// CheckMyPromotion handles POST /api/users/me/promotion-check
func (s *Server) CheckMyPromotion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := callerID(c)

	promoted, err := s.promotionService.CheckAutoPromote(ctx, userID)
	if err != nil {
		return respond(c, err)
	}
	user, err := s.userService.GetProfile(ctx, userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"promoted": promoted,
		"level":    user.Level,
	})
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers handles GET /api/admin/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(users)
}

// GetStaff handles GET /api/admin/users/staff
func (s *Server) GetStaff(c *fiber.Ctx) error {
	users, err := s.userService.ListStaff(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(users)
}

// SetUserLevel handles PUT /api/admin/users/:id/level
func (s *Server) SetUserLevel(c *fiber.Ctx) error {
	var req struct {
		Level int `json:"level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := s.userService.SetLevel(c.UserContext(), callerID(c), c.Params("id"), req.Level)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// LiftSuspension handles DELETE /api/admin/users/:id/suspension
func (s *Server) LiftSuspension(c *fiber.Ctx) error {
	user, err := s.userService.LiftSuspension(c.UserContext(), callerID(c), c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetFeatureFlags returns configured feature flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(callerID(c)),
	})
}
