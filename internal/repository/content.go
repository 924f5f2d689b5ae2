package repository

import (
	"context"
	"errors"
	"fmt"

	"townsquare/internal/models"
	"townsquare/internal/observability"

	"gorm.io/gorm"
)

// ContentRepository persists the reportable content tables.
type ContentRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	CreateMarketListing(ctx context.Context, listing *models.MarketListing) error
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	GetMarketListing(ctx context.Context, id uint) (*models.MarketListing, error)
	ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error)
	Exists(ctx context.Context, ct models.ContentType, id uint) (bool, error)
	// ResolveAuthor returns the author of a content item. found is false when
	// the item no longer exists.
	ResolveAuthor(ctx context.Context, ct models.ContentType, id uint) (authorID string, found bool, err error)
	// Delete hard-deletes a content item. Deleting a post also removes its comments.
	Delete(ctx context.Context, ct models.ContentType, id uint) error
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository returns a new ContentRepository implementation.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func modelFor(ct models.ContentType) (any, string, error) {
	switch ct {
	case models.ContentPost:
		return &models.Post{}, "posts", nil
	case models.ContentMarket:
		return &models.MarketListing{}, "market_listings", nil
	default:
		return nil, "", models.NewValidationError(fmt.Sprintf("unknown content type %q", ct))
	}
}

func (r *contentRepository) CreatePost(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	if err := r.db.WithContext(ctx).Omit("Comments").Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contentRepository) CreateMarketListing(ctx context.Context, listing *models.MarketListing) error {
	defer observability.TrackQuery("insert", "market_listings")()
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contentRepository) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *contentRepository) GetMarketListing(ctx context.Context, id uint) (*models.MarketListing, error) {
	defer observability.TrackQuery("select", "market_listings")()
	var listing models.MarketListing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Market listing", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &listing, nil
}

func (r *contentRepository) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var posts []models.Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *contentRepository) Exists(ctx context.Context, ct models.ContentType, id uint) (bool, error) {
	_, found, err := r.ResolveAuthor(ctx, ct, id)
	return found, err
}

func (r *contentRepository) ResolveAuthor(ctx context.Context, ct models.ContentType, id uint) (string, bool, error) {
	model, table, err := modelFor(ct)
	if err != nil {
		return "", false, err
	}
	defer observability.TrackQuery("select", table)()

	var authors []string
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Limit(1).Pluck("user_id", &authors).Error; err != nil {
		return "", false, models.NewInternalError(err)
	}
	if len(authors) == 0 {
		return "", false, nil
	}
	return authors[0], true, nil
}

func (r *contentRepository) Delete(ctx context.Context, ct models.ContentType, id uint) error {
	model, table, err := modelFor(ct)
	if err != nil {
		return err
	}
	defer observability.TrackQuery("delete", table)()

	db := r.db.WithContext(ctx)
	if ct == models.ContentPost {
		if err := db.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	if err := db.Unscoped().Delete(model, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
