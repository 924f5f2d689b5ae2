package service

import (
	"context"
	"log/slog"

	"townsquare/internal/cache"
	"townsquare/internal/featureflags"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/notifications"
	"townsquare/internal/observability"
	"townsquare/internal/repository"
)

// Activity a newcomer needs before being promoted one tier.
const (
	PromotionMinPosts    = 2
	PromotionMinComments = 2
)

// PromotionService raises newcomers to member once they have taken part in
// the boards.
type PromotionService struct {
	store repository.Store
	opts  options
}

// NewPromotionService returns a new PromotionService.
func NewPromotionService(store repository.Store, opts ...Option) *PromotionService {
	return &PromotionService{store: store, opts: buildOptions(opts)}
}

// CheckAutoPromote promotes userID from the lowest tier by exactly one step
// when both activity counts reach their minimum. Any other tier is left
// alone, so repeated calls are no-ops.
func (s *PromotionService) CheckAutoPromote(ctx context.Context, userID string) (bool, error) {
	if !s.opts.flags.EnabledOr(featureflags.AutoPromote, userID, true) {
		return false, nil
	}

	unlock := s.opts.locks.Lock(userLockKey(userID))
	defer unlock()

	var newLevel int
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return models.NewNotFoundError("User", userID)
		}
		if user.Level != models.LevelNewcomer {
			return nil
		}

		posts, err := tx.Users().CountAuthoredPosts(ctx, userID)
		if err != nil {
			return err
		}
		if posts < PromotionMinPosts {
			return nil
		}
		comments, err := tx.Users().CountAuthoredComments(ctx, userID)
		if err != nil {
			return err
		}
		if comments < PromotionMinComments {
			return nil
		}

		newLevel = user.Level - 1
		return tx.Users().UpdateLevel(ctx, userID, newLevel)
	})
	if err != nil {
		return false, err
	}
	if newLevel == 0 {
		return false, nil
	}

	observability.Promotions.Inc()
	cache.InvalidateUser(ctx, userID)
	middleware.Logger.InfoContext(ctx, "User promoted by activity",
		slog.String("user_id", userID),
		slog.Int("level", newLevel),
	)
	if err := s.opts.notifier.PublishEvent(ctx, notifications.UserEvent{
		Type:   notifications.EventPromoted,
		UserID: userID,
		Level:  newLevel,
	}); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish promotion event", slog.String("error", err.Error()))
	}
	return true, nil
}
