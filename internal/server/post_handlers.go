package server

import (
	"townsquare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.contentService.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.contentService.GetPost(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	post, err := s.contentService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: callerID(c),
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	comment, err := s.contentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		AuthorID: callerID(c),
		PostID:   postID,
		Content:  req.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// CreateMarketListing handles POST /api/market
func (s *Server) CreateMarketListing(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       int64  `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	listing, err := s.contentService.CreateMarketListing(c.UserContext(), service.CreateListingInput{
		AuthorID:    callerID(c),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// GetMarketListing handles GET /api/market/:id
func (s *Server) GetMarketListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.contentService.GetMarketListing(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(listing)
}
