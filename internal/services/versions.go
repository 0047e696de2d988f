package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/internal/repositories"
	"evidence-portal/pkg/portalErrors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// VersionService keeps one append-only version chain per evidence artifact.
// Every mutation runs in a single transaction in the order: supersede the old
// latest, write the new version, move the evidence pointer.
type VersionService struct {
	repo *repositories.EvidenceRepository
	now  func() time.Time
}

func NewVersionService(repo *repositories.EvidenceRepository) *VersionService {
	return &VersionService{repo: repo, now: time.Now}
}

// CreateEvidence stores a new evidence record together with version 1.
func (s *VersionService) CreateEvidence(ctx context.Context, ev *models.Evidence, payload models.Payload, uploader models.Uploader) (*models.FileVersion, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	if err := models.Validate(uploader); err != nil {
		return nil, err
	}
	if err := models.Validate(ev); err != nil {
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.VerificationStatus == "" {
		ev.VerificationStatus = models.VerificationPending
	}

	now := s.now()
	ev.CurrentVersion = 1
	ev.TotalVersions = 1
	ev.LastUpdatedAt = now
	ev.LastUpdatedBy = uploader.ID

	var created *models.FileVersion
	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		if err := tx.CreateEvidence(ctx, ev); err != nil {
			return err
		}
		created = newFileVersion(ev.ID, 1, payload, uploader, "")
		return tx.CreateVersion(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"evidence": ev.ID, "unit": ev.UnitID}).Info("evidence created")
	return created, nil
}

// CreateInitial writes version 1 for an evidence record that has no file yet.
func (s *VersionService) CreateInitial(ctx context.Context, evidenceID string, payload models.Payload, uploader models.Uploader) (*models.FileVersion, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	if err := models.Validate(uploader); err != nil {
		return nil, err
	}

	var created *models.FileVersion
	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		ev, err := tx.LockEvidence(ctx, evidenceID)
		if err != nil {
			return err
		}
		if ev.CurrentVersion != 0 {
			return fmt.Errorf("evidence %s already at version %d: %w", evidenceID, ev.CurrentVersion, portalErrors.ErrVersionConflict)
		}

		now := s.now()
		created = newFileVersion(evidenceID, 1, payload, uploader, "")
		if err := tx.CreateVersion(ctx, created); err != nil {
			return err
		}
		return tx.SetPointer(ctx, evidenceID, 1, 1, uploader.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddVersion appends version current+1 and makes it the latest.
func (s *VersionService) AddVersion(ctx context.Context, evidenceID string, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	return s.addVersion(ctx, evidenceID, -1, payload, uploader, note)
}

// AddVersionIfCurrent is AddVersion guarded by the caller's view of the
// chain: it fails with ErrVersionConflict unless the evidence is still at
// expectedCurrent.
func (s *VersionService) AddVersionIfCurrent(ctx context.Context, evidenceID string, expectedCurrent int, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	return s.addVersion(ctx, evidenceID, expectedCurrent, payload, uploader, note)
}

func (s *VersionService) addVersion(ctx context.Context, evidenceID string, expected int, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	if err := models.Validate(uploader); err != nil {
		return nil, err
	}

	var created *models.FileVersion
	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		v, err := s.appendLatest(ctx, tx, evidenceID, expected, payload, uploader, note)
		created = v
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"evidence": evidenceID, "version": created.Version}).Info("version added")
	return created, nil
}

// RevertToVersion makes the content of an older version current again by
// copying it into a fresh version. Historical records are never re-flagged.
func (s *VersionService) RevertToVersion(ctx context.Context, evidenceID, targetVersionID string, actor models.Actor) (*models.FileVersion, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("revert evidence %s: %w", evidenceID, portalErrors.ErrPermissionDenied)
	}

	var created *models.FileVersion
	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		target, err := tx.VersionByID(ctx, targetVersionID)
		if err != nil {
			return err
		}
		if target.EvidenceID != evidenceID {
			return fmt.Errorf("version %s of evidence %s: %w", targetVersionID, evidenceID, portalErrors.ErrNotFound)
		}

		note := fmt.Sprintf("Reverted to version %d", target.Version)
		uploader := models.Uploader{ID: actor.ID, Name: actor.Name}
		created, err = s.appendLatest(ctx, tx, evidenceID, -1, models.PayloadOf(target), uploader, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"evidence": evidenceID,
		"from":     targetVersionID,
		"version":  created.Version,
	}).Info("evidence reverted")
	return created, nil
}

// appendLatest must run inside a transaction.
func (s *VersionService) appendLatest(ctx context.Context, tx *repositories.EvidenceRepository, evidenceID string, expected int, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	ev, err := tx.LockEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if expected >= 0 && ev.CurrentVersion != expected {
		return nil, fmt.Errorf("evidence %s is at version %d, expected %d: %w",
			evidenceID, ev.CurrentVersion, expected, portalErrors.ErrVersionConflict)
	}

	// Numbering follows the pointer, not the row count, so deleted
	// intermediate versions never free their numbers.
	next := ev.CurrentVersion + 1
	now := s.now()

	if _, err := tx.SupersedeLatest(ctx, evidenceID); err != nil {
		return nil, err
	}
	created := newFileVersion(evidenceID, next, payload, uploader, note)
	if err := tx.CreateVersion(ctx, created); err != nil {
		return nil, err
	}

	ok, err := tx.CompareAndSetPointer(ctx, evidenceID, ev.CurrentVersion, next, next, uploader.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("evidence %s moved past version %d: %w", evidenceID, ev.CurrentVersion, portalErrors.ErrVersionConflict)
	}
	return created, nil
}

// GetHistory returns the chain, most recent first.
func (s *VersionService) GetHistory(ctx context.Context, evidenceID string) ([]models.FileVersion, error) {
	if _, err := s.repo.EvidenceByID(ctx, evidenceID); err != nil {
		return nil, err
	}
	return s.repo.VersionsByEvidence(ctx, evidenceID)
}

func (s *VersionService) GetVersion(ctx context.Context, evidenceID string, version int) (*models.FileVersion, error) {
	return s.repo.VersionByNumber(ctx, evidenceID, version)
}

// DeleteVersion removes a superseded version. The latest one is refused.
func (s *VersionService) DeleteVersion(ctx context.Context, versionID string, actor models.Actor) (*models.FileVersion, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("delete version %s: %w", versionID, portalErrors.ErrPermissionDenied)
	}

	var deleted *models.FileVersion
	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		v, err := tx.VersionByID(ctx, versionID)
		if err != nil {
			return err
		}
		if _, err := tx.LockEvidence(ctx, v.EvidenceID); err != nil {
			return err
		}
		if v.IsLatest {
			return fmt.Errorf("version %d of evidence %s: %w", v.Version, v.EvidenceID, portalErrors.ErrCannotDeleteLatest)
		}
		deleted = v
		return tx.DeleteVersion(ctx, versionID)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"evidence": deleted.EvidenceID, "version": deleted.Version}).Info("version deleted")
	return deleted, nil
}

// DeleteEvidence removes the evidence and its whole chain. Not undoable.
func (s *VersionService) DeleteEvidence(ctx context.Context, evidenceID string, actor models.Actor) error {
	if !actor.Role.IsAdmin() {
		return fmt.Errorf("delete evidence %s: %w", evidenceID, portalErrors.ErrPermissionDenied)
	}

	err := s.repo.Transaction(ctx, func(tx *repositories.EvidenceRepository) error {
		return tx.DeleteEvidence(ctx, evidenceID)
	})
	if err != nil {
		return err
	}

	log.WithField("evidence", evidenceID).Warn("evidence deleted with all versions")
	return nil
}

// VerifyChain checks that the evidence has exactly one latest version whose
// number matches the pointer and that stored numbers never exceed the total.
// It only reports; nothing is repaired.
func (s *VersionService) VerifyChain(ctx context.Context, evidenceID string) error {
	ev, err := s.repo.EvidenceByID(ctx, evidenceID)
	if err != nil {
		return err
	}
	versions, err := s.repo.VersionsByEvidence(ctx, evidenceID)
	if err != nil {
		return err
	}

	var problems []string
	var latest []int
	seen := make(map[int]bool, len(versions))
	for _, v := range versions {
		if v.IsLatest {
			latest = append(latest, v.Version)
		}
		if v.Version < 1 || v.Version > ev.TotalVersions {
			problems = append(problems, fmt.Sprintf("version %d outside 1..%d", v.Version, ev.TotalVersions))
		}
		if seen[v.Version] {
			problems = append(problems, fmt.Sprintf("version %d stored twice", v.Version))
		}
		seen[v.Version] = true
	}

	switch {
	case ev.CurrentVersion == 0 && len(versions) == 0:
	case len(latest) != 1:
		problems = append(problems, fmt.Sprintf("%d latest versions", len(latest)))
	case latest[0] != ev.CurrentVersion:
		problems = append(problems, fmt.Sprintf("latest is %d but pointer is %d", latest[0], ev.CurrentVersion))
	}

	if len(problems) > 0 {
		log.WithField("evidence", evidenceID).Warnf("version chain inconsistent: %s", strings.Join(problems, "; "))
		return fmt.Errorf("evidence %s: %s: %w", evidenceID, strings.Join(problems, "; "), portalErrors.ErrPartialInvariantViolation)
	}
	return nil
}

func checkPayload(p models.Payload) error {
	if strings.TrimSpace(p.FileURL) == "" {
		return portalErrors.ErrInvalidPayload
	}
	return models.Validate(p)
}

// newFileVersion leaves UploadedAt zero so the store stamps it on insert.
func newFileVersion(evidenceID string, n int, p models.Payload, u models.Uploader, note string) *models.FileVersion {
	return &models.FileVersion{
		ID:             uuid.NewString(),
		EvidenceID:     evidenceID,
		Version:        n,
		FileURL:        p.FileURL,
		FileSize:       p.FileSize,
		MimeType:       p.MimeType,
		Label:          p.Label,
		Notes:          note,
		UploadedBy:     u.ID,
		UploadedByName: u.Name,
		IsLatest:       true,
	}
}
