package services

import (
	"context"
	"fmt"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/internal/optimistic"
	"evidence-portal/internal/repositories"
	"evidence-portal/pkg/portalErrors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RegistrationView is the reviewer's local list of registrations.
type RegistrationView = optimistic.State[[]models.Registration]

// ReviewHook runs after a review decision is durable. Hooks are fire and
// forget.
type ReviewHook func(ctx context.Context, reg models.Registration, reviewer models.Actor) error

// RegistrationService reviews pending registrations optimistically: the
// reviewer's view flips at once and is restored if the write fails.
type RegistrationService struct {
	repo  *repositories.RegistrationRepository
	coord *optimistic.Coordinator
	hooks []ReviewHook
	now   func() time.Time
}

func NewRegistrationService(repo *repositories.RegistrationRepository, coord *optimistic.Coordinator, hooks ...ReviewHook) *RegistrationService {
	return &RegistrationService{repo: repo, coord: coord, hooks: hooks, now: time.Now}
}

// Submit records a new pending registration.
func (s *RegistrationService) Submit(ctx context.Context, reg *models.Registration) error {
	if err := models.Validate(reg); err != nil {
		return err
	}
	if reg.OrgID == "" {
		return fmt.Errorf("%w: registration has no organization", portalErrors.ErrValidationFailed)
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	reg.Status = models.RegistrationPending
	reg.ReviewedBy = ""
	reg.ReviewedAt = nil
	return s.repo.Create(ctx, reg)
}

// LoadPending builds a reviewer view of the organization's pending
// registrations.
func (s *RegistrationService) LoadPending(ctx context.Context, orgID string) (*RegistrationView, error) {
	regs, err := s.repo.PendingByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return optimistic.NewState(regs), nil
}

func (s *RegistrationService) Approve(ctx context.Context, view *RegistrationView, registrationID string, reviewer models.Actor) (*optimistic.Pending[[]models.Registration], error) {
	return s.review(ctx, view, registrationID, reviewer, models.RegistrationApproved, "")
}

func (s *RegistrationService) Reject(ctx context.Context, view *RegistrationView, registrationID string, reviewer models.Actor, reason string) (*optimistic.Pending[[]models.Registration], error) {
	return s.review(ctx, view, registrationID, reviewer, models.RegistrationRejected, reason)
}

// review raises permission and lookup errors before touching the view; only
// a failed durable write rolls back.
func (s *RegistrationService) review(ctx context.Context, view *RegistrationView, id string, reviewer models.Actor, to models.RegistrationStatus, reason string) (*optimistic.Pending[[]models.Registration], error) {
	if !reviewer.Role.IsAdmin() {
		return nil, fmt.Errorf("review registration %s: %w", id, portalErrors.ErrPermissionDenied)
	}

	current := view.Get()
	idx := indexOfRegistration(current, id)
	if idx < 0 {
		return nil, fmt.Errorf("registration %s: %w", id, portalErrors.ErrNotFound)
	}
	if current[idx].Status != models.RegistrationPending {
		return nil, fmt.Errorf("registration %s: %w", id, portalErrors.ErrAlreadyReviewed)
	}

	at := s.now()
	reviewed := current[idx]
	reviewed.Status = to
	reviewed.ReviewedBy = reviewer.ID
	reviewed.ReviewedAt = &at
	reviewed.RejectReason = reason
	original := current[idx]

	effects := make([]optimistic.Effect, 0, len(s.hooks))
	for _, hook := range s.hooks {
		hook := hook
		effects = append(effects, func(ctx context.Context) error {
			return hook(ctx, reviewed, reviewer)
		})
	}

	act := optimistic.Action[[]models.Registration]{
		Name: "registration." + string(to),
		Speculate: func(regs []models.Registration) []models.Registration {
			return replaceRegistration(regs, reviewed)
		},
		Commit: func(ctx context.Context) error {
			return s.repo.Review(ctx, id, to, reviewer.ID, reason, at)
		},
		Rollback: func(regs []models.Registration) []models.Registration {
			return replaceRegistration(regs, original)
		},
		FireAndForget: effects,
	}

	log.WithFields(log.Fields{"registration": id, "status": to, "reviewer": reviewer.ID}).Debug("reviewing registration")
	return optimistic.Run(ctx, s.coord, view, act), nil
}

func indexOfRegistration(regs []models.Registration, id string) int {
	for i := range regs {
		if regs[i].ID == id {
			return i
		}
	}
	return -1
}

// replaceRegistration returns a copy of regs with the entry of reg.ID
// swapped for reg.
func replaceRegistration(regs []models.Registration, reg models.Registration) []models.Registration {
	out := make([]models.Registration, len(regs))
	copy(out, regs)
	if i := indexOfRegistration(out, reg.ID); i >= 0 {
		out[i] = reg
	}
	return out
}
