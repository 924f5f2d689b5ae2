package service

import (
	"context"
	"fmt"
	"log/slog"

	"townsquare/internal/cache"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/repository"
)

// UserService serves profiles and the admin account controls.
type UserService struct {
	store repository.Store
	opts  options
}

// NewUserService returns a new UserService.
func NewUserService(store repository.Store, opts ...Option) *UserService {
	return &UserService{store: store, opts: buildOptions(opts)}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.store.Users().List(ctx, limit, offset)
}

// ListStaff returns every user at manager tier or above.
func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	return s.store.Users().ListByMaxLevel(ctx, models.LevelManager)
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// SetLevel assigns a privilege tier. It shares the per-user lock with the
// moderation and promotion engines.
func (s *UserService) SetLevel(ctx context.Context, actorID, targetID string, level int) (*models.User, error) {
	if !models.ValidLevel(level) {
		return nil, models.NewValidationError(fmt.Sprintf("level must be between %d and %d", models.LevelAdmin, models.LevelNewcomer))
	}
	if actorID == targetID && level != models.LevelAdmin {
		return nil, models.NewValidationError("Admins cannot demote themselves")
	}

	unlock := s.opts.locks.Lock(userLockKey(targetID))
	defer unlock()

	var updated *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if user == nil {
			return models.NewNotFoundError("User", targetID)
		}
		if user.Level != level {
			if err := tx.Users().UpdateLevel(ctx, targetID, level); err != nil {
				return err
			}
			user.Level = level
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateUser(ctx, targetID)
	middleware.Logger.InfoContext(ctx, "User level changed",
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
		slog.Int("level", level),
	)
	return updated, nil
}

// LiftSuspension clears a suspension early. The infraction count is kept.
func (s *UserService) LiftSuspension(ctx context.Context, actorID, targetID string) (*models.User, error) {
	unlock := s.opts.locks.Lock(userLockKey(targetID))
	defer unlock()

	var updated *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if user == nil {
			return models.NewNotFoundError("User", targetID)
		}
		if user.SuspendedUntil != nil {
			if err := tx.Users().SetSuspension(ctx, targetID, nil); err != nil {
				return err
			}
			user.SuspendedUntil = nil
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateUser(ctx, targetID)
	middleware.Logger.InfoContext(ctx, "Suspension lifted",
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
	)
	return updated, nil
}
