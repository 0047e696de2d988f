package services

import (
	"context"
	"fmt"

	"evidence-portal/internal/models"
	"evidence-portal/internal/repositories"
	"evidence-portal/pkg/portalErrors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CycleService guards the single active cycle per organization. Activate is
// the only path that sets IsActive.
type CycleService struct {
	repo *repositories.CycleRepository
}

func NewCycleService(repo *repositories.CycleRepository) *CycleService {
	return &CycleService{repo: repo}
}

// ListCycles returns the organization's cycles, newest year first.
func (s *CycleService) ListCycles(ctx context.Context, orgID string) ([]models.AssessmentCycle, error) {
	return s.repo.ByOrg(ctx, orgID)
}

// Create stores a draft cycle. A requested IsActive is dropped.
func (s *CycleService) Create(ctx context.Context, draft models.NewCycle) (*models.AssessmentCycle, error) {
	if err := models.Validate(draft); err != nil {
		return nil, err
	}
	if draft.IsActive {
		log.WithField("org", draft.OrgID).Debug("ignoring isActive on cycle creation")
	}

	c := &models.AssessmentCycle{
		ID:          uuid.NewString(),
		OrgID:       draft.OrgID,
		Year:        draft.Year,
		Name:        draft.Name,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		Status:      models.CycleDraft,
		IsActive:    false,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update applies the set fields of patch. IsActive is ignored; status
// "active" is only assigned by Activate.
func (s *CycleService) Update(ctx context.Context, cycleID string, patch models.CyclePatch) (*models.AssessmentCycle, error) {
	current, err := s.repo.ByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Year != nil {
		if *patch.Year < 2000 || *patch.Year > 2100 {
			return nil, fmt.Errorf("%w: year %d out of range", portalErrors.ErrValidationFailed, *patch.Year)
		}
		fields["year"] = *patch.Year
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, fmt.Errorf("%w: cycle name is empty", portalErrors.ErrValidationFailed)
		}
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	start, end := current.StartDate, current.EndDate
	if patch.StartDate != nil {
		start = *patch.StartDate
		fields["start_date"] = start
	}
	if patch.EndDate != nil {
		end = *patch.EndDate
		fields["end_date"] = end
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", portalErrors.ErrValidationFailed)
	}
	if patch.Status != nil {
		switch *patch.Status {
		case models.CycleDraft, models.CycleCompleted, models.CycleArchived:
			fields["status"] = *patch.Status
		default:
			return nil, fmt.Errorf("%w: status %q cannot be set by update", portalErrors.ErrValidationFailed, *patch.Status)
		}
	}
	if patch.IsActive != nil {
		log.WithField("cycle", cycleID).Debug("ignoring isActive in cycle update")
	}

	if err := s.repo.Update(ctx, cycleID, fields); err != nil {
		return nil, err
	}
	return s.repo.ByID(ctx, cycleID)
}

// Activate makes cycleID the organization's only active cycle. The flag
// changes are written as one batch. It reports false on any failure, in which
// case nothing changed.
func (s *CycleService) Activate(ctx context.Context, orgID, cycleID string) bool {
	entry := log.WithFields(log.Fields{"org": orgID, "cycle": cycleID})

	target, err := s.repo.ByID(ctx, cycleID)
	if err != nil {
		entry.WithError(err).Error("activate: load target cycle")
		return false
	}
	if target.OrgID != orgID {
		entry.Error("activate: cycle belongs to another organization")
		return false
	}

	active, err := s.repo.ActiveByOrg(ctx, orgID)
	if err != nil {
		entry.WithError(err).Error("activate: load active cycles")
		return false
	}
	if len(active) > 1 {
		ids := make([]string, len(active))
		for i, c := range active {
			ids[i] = c.ID
		}
		entry.WithField("active", ids).Warn("more than one active cycle found, clearing all but the target")
	}

	cleared, err := s.repo.Activate(ctx, orgID, cycleID)
	if err != nil {
		entry.WithError(err).Error("activate: batch rejected")
		return false
	}

	entry.WithField("deactivated", cleared).Info("cycle activated")
	return true
}

// GetActive returns the active cycle of the organization, or nil.
func (s *CycleService) GetActive(ctx context.Context, orgID string) (*models.AssessmentCycle, error) {
	active, err := s.repo.ActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	if len(active) > 1 {
		log.WithFields(log.Fields{"org": orgID, "count": len(active)}).Warn("more than one active cycle found")
	}
	return &active[0], nil
}
