// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"townsquare/internal/cache"
	"townsquare/internal/models"
	"townsquare/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// GetByID reads through the Redis cache and fails with NOT_FOUND.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// FindByID returns nil, nil when the user does not exist.
	FindByID(ctx context.Context, id string) (*models.User, error)
	// FindByIDForUpdate is FindByID holding a row lock until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	ListByMaxLevel(ctx context.Context, maxLevel int) ([]models.User, error)
	UpdateLevel(ctx context.Context, id string, level int) error
	// IncrementInfractionCount adds one to the counter in a single statement.
	// found is false when no live user row matched.
	IncrementInfractionCount(ctx context.Context, id string) (found bool, err error)
	SetSuspension(ctx context.Context, id string, until *time.Time) error
	CountAuthoredPosts(ctx context.Context, id string) (int64, error)
	CountAuthoredComments(ctx context.Context, id string) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("select", "users")()
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(r.db.WithContext(ctx), "id = ?", id)
}

func (r *userRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(r.db.WithContext(ctx), "email = ?", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(r.db.WithContext(ctx), "username = ?", username)
}

func (r *userRepository) find(db *gorm.DB, query string, arg any) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var user models.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists", err)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListByMaxLevel(ctx context.Context, maxLevel int) ([]models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var users []models.User
	if err := r.db.WithContext(ctx).Where("level <= ?", maxLevel).Order("level ASC, username ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) UpdateLevel(ctx context.Context, id string, level int) error {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("level", level)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) IncrementInfractionCount(ctx context.Context, id string) (bool, error) {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("infraction_count", gorm.Expr("infraction_count + ?", 1))
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) SetSuspension(ctx context.Context, id string, until *time.Time) error {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("suspended_until", until)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) CountAuthoredPosts(ctx context.Context, id string) (int64, error) {
	defer observability.TrackQuery("count", "posts")()
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", id).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *userRepository) CountAuthoredComments(ctx context.Context, id string) (int64, error) {
	defer observability.TrackQuery("count", "comments")()
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("user_id = ?", id).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
