package server

import (
	"townsquare/internal/models"
	"townsquare/internal/repository"
	"townsquare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReport handles POST /api/reports
func (s *Server) CreateReport(c *fiber.Ctx) error {
	var req struct {
		ContentType models.ContentType `json:"content_type"`
		ContentID   uint               `json:"content_id"`
		Reason      string             `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	report, err := s.moderationService.CreateReport(c.UserContext(), service.CreateReportInput{
		ReporterID:  callerID(c),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetReports handles GET /api/admin/reports?status=&content_type=&limit=&offset=
func (s *Server) GetReports(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	reports, total, err := s.moderationService.ListReports(c.UserContext(), repository.ReportFilter{
		Status:      models.ReportStatus(c.Query("status")),
		ContentType: models.ContentType(c.Query("content_type")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// GetReport handles GET /api/admin/reports/:id
func (s *Server) GetReport(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.moderationService.GetReport(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(report)
}

// DecideReport handles POST /api/admin/reports/:id/decision with
// {"action": "wait"|"reject"|"approve"|"delete"}.
func (s *Server) DecideReport(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Action models.ModerationAction `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	outcome, err := s.moderationService.Decide(c.UserContext(), service.DecideInput{
		ReportID: id,
		AdminID:  callerID(c),
		Action:   req.Action,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(outcome)
}
