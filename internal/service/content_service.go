package service

import (
	"context"
	"log/slog"

	"townsquare/internal/cache"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/repository"
	"townsquare/internal/validation"
)

// Promoter is notified after a user authors something.
type Promoter interface {
	CheckAutoPromote(ctx context.Context, userID string) (bool, error)
}

type CreatePostInput struct {
	AuthorID string
	Title    string
	Content  string
}

type CreateCommentInput struct {
	AuthorID string
	PostID   uint
	Content  string
}

type CreateListingInput struct {
	AuthorID    string
	Title       string
	Description string
	Price       int64
}

// ContentService creates and reads board posts, comments and market listings.
type ContentService struct {
	store    repository.Store
	promoter Promoter
}

// NewContentService returns a new ContentService. promoter may be nil.
func NewContentService(store repository.Store, promoter Promoter) *ContentService {
	return &ContentService{store: store, promoter: promoter}
}

func (s *ContentService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateBody(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{Title: in.Title, Content: in.Content, UserID: in.AuthorID}
	if err := s.store.Content().CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.promote(ctx, in.AuthorID)
	return post, nil
}

func (s *ContentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := validation.ValidateBody(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	exists, err := s.store.Content().Exists(ctx, models.ContentPost, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	comment := &models.Comment{Content: in.Content, PostID: in.PostID, UserID: in.AuthorID}
	if err := s.store.Content().CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.PostKey(in.PostID))

	s.promote(ctx, in.AuthorID)
	return comment, nil
}

func (s *ContentService) CreateMarketListing(ctx context.Context, in CreateListingInput) (*models.MarketListing, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateBody(in.Description); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePrice(in.Price); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	listing := &models.MarketListing{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		UserID:      in.AuthorID,
	}
	if err := s.store.Content().CreateMarketListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// GetPost returns a post with its comments, cached in Redis.
func (s *ContentService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		p, err := s.store.Content().GetPost(ctx, id)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *ContentService) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.store.Content().ListPosts(ctx, limit, offset)
}

func (s *ContentService) GetMarketListing(ctx context.Context, id uint) (*models.MarketListing, error) {
	return s.store.Content().GetMarketListing(ctx, id)
}

// promote runs the activity promotion. Its failure never fails the write
// that triggered it.
func (s *ContentService) promote(ctx context.Context, userID string) {
	if s.promoter == nil {
		return
	}
	if _, err := s.promoter.CheckAutoPromote(ctx, userID); err != nil {
		middleware.Logger.WarnContext(ctx, "Auto-promotion check failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
