package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"townsquare/internal/cache"
	"townsquare/internal/middleware"
	"townsquare/internal/models"
	"townsquare/internal/notifications"
	"townsquare/internal/observability"
	"townsquare/internal/repository"
	"townsquare/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Escalation policy. Fixed, not configurable per call.
const (
	InfractionThreshold = 6
	SuspensionDuration  = 7 * 24 * time.Hour
)

// CreateReportInput is a member's complaint about a content item.
type CreateReportInput struct {
	ReporterID  string
	ContentType models.ContentType
	ContentID   uint
	Reason      string
}

// DecideInput is an admin decision on one report.
type DecideInput struct {
	ReportID uint
	AdminID  string
	Action   models.ModerationAction
}

// Outcome describes what a decision changed.
type Outcome struct {
	ReportID        uint                    `json:"report_id"`
	Action          models.ModerationAction `json:"action"`
	Status          models.ReportStatus     `json:"status"`
	AuthorID        string                  `json:"author_id,omitempty"`
	AuthorUnknown   bool                    `json:"author_unknown"`
	InfractionCount int                     `json:"infraction_count,omitempty"`
	// Suspended is true only when this decision started the suspension.
	Suspended      bool       `json:"suspended"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// ModerationService runs the report state machine and the infraction
// escalation that hangs off it.
type ModerationService struct {
	store repository.Store
	opts  options
}

// NewModerationService returns a new ModerationService.
func NewModerationService(store repository.Store, opts ...Option) *ModerationService {
	return &ModerationService{store: store, opts: buildOptions(opts)}
}

// CreateReport files a pending report. The content must exist and a reporter
// may report a given item once.
func (s *ModerationService) CreateReport(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if !in.ContentType.Valid() {
		return nil, models.NewValidationError("content_type must be post or market")
	}
	if in.ContentID == 0 {
		return nil, models.NewValidationError("content_id is required")
	}
	if err := validation.ValidateReportReason(in.Reason); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	exists, err := s.store.Content().Exists(ctx, in.ContentType, in.ContentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError(contentLabel(in.ContentType), in.ContentID)
	}

	report := &models.Report{
		ReporterID:  in.ReporterID,
		ContentType: in.ContentType,
		ContentID:   in.ContentID,
		Reason:      in.Reason,
		Status:      models.ReportStatusPending,
	}
	if err := s.store.Reports().Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// GetReport returns one report.
func (s *ModerationService) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	return s.store.Reports().GetByID(ctx, id)
}

// ListReports returns a filtered page of reports and the unpaged total.
func (s *ModerationService) ListReports(ctx context.Context, filter repository.ReportFilter) ([]models.Report, int64, error) {
	if filter.Status != "" && filter.Status != models.ReportStatusPending && !filter.Status.Terminal() {
		return nil, 0, models.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.ContentType != "" && !filter.ContentType.Valid() {
		return nil, 0, models.NewValidationError(fmt.Sprintf("unknown content type %q", filter.ContentType))
	}
	return s.store.Reports().List(ctx, filter)
}

// Decide applies an admin action to a pending report.
//
// wait changes nothing. reject closes the report. approve and delete close
// it and count an infraction against the content's author; delete also
// removes the content. Reaching InfractionThreshold suspends the author for
// SuspensionDuration unless a suspension is already running. When the author
// cannot be resolved the report still closes and Outcome.AuthorUnknown is set.
func (s *ModerationService) Decide(ctx context.Context, in DecideInput) (out *Outcome, err error) {
	action, ok := models.ParseModerationAction(string(in.Action))
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown action %q", in.Action))
	}

	span, ctx := observability.NewSpan(ctx, "moderation.decide",
		attribute.Int("report.id", int(in.ReportID)),
		attribute.String("moderation.action", string(action)),
	)
	defer func() {
		span.SetError(err)
		span.End()
	}()

	unlockReport := s.opts.locks.Lock(reportLockKey(in.ReportID))
	defer unlockReport()

	report, err := s.store.Reports().GetByID(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}

	if action == models.ActionWait {
		observability.ModerationDecisions.WithLabelValues(string(action)).Inc()
		return &Outcome{ReportID: report.ID, Action: action, Status: report.Status}, nil
	}

	if report.Status.Terminal() {
		return nil, alreadyDecided()
	}

	// The author has to be captured before the content can be deleted.
	var lockedAuthor string
	if action.Penalizes() {
		authorID, found, err := s.store.Content().ResolveAuthor(ctx, report.ContentType, report.ContentID)
		if err != nil {
			return nil, err
		}
		if found {
			lockedAuthor = authorID
			unlockUser := s.opts.locks.Lock(userLockKey(authorID))
			defer unlockUser()
		}
	}

	now := s.opts.now()
	out = &Outcome{ReportID: report.ID, Action: action, Status: action.TerminalStatus()}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Reports().GetByIDForUpdate(ctx, report.ID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return alreadyDecided()
		}

		var authorID string
		var found bool
		if action.Penalizes() {
			authorID, found, err = tx.Content().ResolveAuthor(ctx, current.ContentType, current.ContentID)
			if err != nil {
				return err
			}
			if found && authorID != lockedAuthor {
				return models.NewInternalError(fmt.Errorf("report %d: content author changed during decision", current.ID))
			}
		}

		if action == models.ActionDelete && found {
			if err := tx.Content().Delete(ctx, current.ContentType, current.ContentID); err != nil {
				return err
			}
		}

		if err := tx.Reports().MarkDecided(ctx, current.ID, out.Status, in.AdminID, now); err != nil {
			return err
		}

		if !action.Penalizes() {
			return nil
		}
		if !found {
			out.AuthorUnknown = true
			return nil
		}

		return s.applyInfraction(ctx, tx, authorID, now, out)
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, report, out)
	return out, nil
}

// applyInfraction increments the author's counter and arms a suspension at
// the threshold. It must run inside the decision transaction.
func (s *ModerationService) applyInfraction(ctx context.Context, tx repository.Store, authorID string, now time.Time, out *Outcome) error {
	matched, err := tx.Users().IncrementInfractionCount(ctx, authorID)
	if err != nil {
		return err
	}
	if !matched {
		out.AuthorUnknown = true
		return nil
	}

	user, err := tx.Users().FindByIDForUpdate(ctx, authorID)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewInternalError(fmt.Errorf("user %s vanished after infraction update", authorID))
	}

	out.AuthorID = authorID
	out.InfractionCount = user.InfractionCount
	if user.IsSuspended(now) {
		out.SuspendedUntil = user.SuspendedUntil
		return nil
	}
	if user.InfractionCount < InfractionThreshold {
		return nil
	}

	until := now.Add(SuspensionDuration)
	if err := tx.Users().SetSuspension(ctx, authorID, &until); err != nil {
		return err
	}
	out.Suspended = true
	out.SuspendedUntil = &until
	return nil
}

// afterDecision runs best-effort side effects once the decision is committed.
func (s *ModerationService) afterDecision(ctx context.Context, report *models.Report, out *Outcome) {
	observability.ModerationDecisions.WithLabelValues(string(out.Action)).Inc()
	if out.Action == models.ActionDelete && report.ContentType == models.ContentPost {
		cache.Invalidate(ctx, cache.PostKey(report.ContentID))
	}

	logger := middleware.Logger.With(
		slog.Uint64("report_id", uint64(report.ID)),
		slog.String("action", string(out.Action)),
	)

	if out.AuthorUnknown {
		observability.UnknownAuthors.Inc()
		logger.WarnContext(ctx, "Report decided without a resolvable author",
			slog.String("error", models.ErrUnknownAuthor.Error()),
			slog.String("content_type", string(report.ContentType)),
			slog.Uint64("content_id", uint64(report.ContentID)),
		)
		return
	}
	if out.AuthorID == "" {
		logger.InfoContext(ctx, "Report decided")
		return
	}

	cache.InvalidateUser(ctx, out.AuthorID)

	event := notifications.UserEvent{
		Type:            notifications.EventInfraction,
		UserID:          out.AuthorID,
		ReportID:        report.ID,
		InfractionCount: out.InfractionCount,
	}
	if out.Suspended {
		observability.Suspensions.Inc()
		event.Type = notifications.EventSuspended
		event.SuspendedUntil = out.SuspendedUntil
		logger.InfoContext(ctx, "Author suspended",
			slog.String("author_id", out.AuthorID),
			slog.Int("infraction_count", out.InfractionCount),
			slog.Time("suspended_until", *out.SuspendedUntil),
		)
	} else {
		logger.InfoContext(ctx, "Infraction recorded",
			slog.String("author_id", out.AuthorID),
			slog.Int("infraction_count", out.InfractionCount),
		)
	}

	if err := s.opts.notifier.PublishEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish moderation event", slog.String("error", err.Error()))
	}
}

func alreadyDecided() error {
	return models.NewConflictError("Report has already been decided", models.ErrReportAlreadyDecided)
}

func contentLabel(ct models.ContentType) string {
	if ct == models.ContentMarket {
		return "Market listing"
	}
	return "Post"
}
