package app

import (
	"context"
	"fmt"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/internal/notifier"
	"evidence-portal/internal/optimistic"
	"evidence-portal/internal/repositories"
	"evidence-portal/internal/services"
	"evidence-portal/pkg/messenger"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FileLookup resolves a file the user sent through the messenger.
type FileLookup interface {
	Info(ctx context.Context, fileID string) (*messenger.FileInfo, error)
}

// Portal is what the outer surfaces call. It adds audit records and queued
// notifications around the version, cycle and registration services.
type Portal struct {
	versions      *services.VersionService
	cycles        *services.CycleService
	registrations *services.RegistrationService
	audit         *repositories.AuditRepository
	queue         *notifier.Queue
	files         FileLookup
	coord         *optimistic.Coordinator
	now           func() time.Time
}

// NewPortal wires the services over db. files may be nil when no bot is
// configured.
func NewPortal(db *gorm.DB, queue *notifier.Queue, files FileLookup, commitTimeout time.Duration) *Portal {
	p := &Portal{
		versions: services.NewVersionService(repositories.NewEvidenceRepository(db)),
		cycles:   services.NewCycleService(repositories.NewCycleRepository(db)),
		audit:    repositories.NewAuditRepository(db),
		queue:    queue,
		files:    files,
		coord:    optimistic.NewCoordinator(commitTimeout),
		now:      time.Now,
	}
	p.registrations = services.NewRegistrationService(
		repositories.NewRegistrationRepository(db), p.coord,
		p.auditReview, p.notifyApplicant,
	)
	return p
}

// Drain waits for fire-and-forget work started by registration reviews.
func (p *Portal) Drain() {
	p.coord.Drain()
}

func (p *Portal) CreateEvidence(ctx context.Context, ev *models.Evidence, payload models.Payload, uploader models.Uploader) (*models.FileVersion, error) {
	return p.versions.CreateEvidence(ctx, ev, payload, uploader)
}

func (p *Portal) CreateInitial(ctx context.Context, evidenceID string, payload models.Payload, uploader models.Uploader) (*models.FileVersion, error) {
	return p.versions.CreateInitial(ctx, evidenceID, payload, uploader)
}

func (p *Portal) AddVersion(ctx context.Context, evidenceID string, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	return p.versions.AddVersion(ctx, evidenceID, payload, uploader, note)
}

func (p *Portal) AddVersionIfCurrent(ctx context.Context, evidenceID string, expected int, payload models.Payload, uploader models.Uploader, note string) (*models.FileVersion, error) {
	return p.versions.AddVersionIfCurrent(ctx, evidenceID, expected, payload, uploader, note)
}

// AddMessengerFile adds a version whose content is a file sent to the bot.
func (p *Portal) AddMessengerFile(ctx context.Context, evidenceID, fileID string, uploader models.Uploader, note string) (*models.FileVersion, error) {
	if p.files == nil {
		return nil, fmt.Errorf("messenger files: %w", messenger.ErrNoToken)
	}
	info, err := p.files.Info(ctx, fileID)
	if err != nil {
		return nil, err
	}
	payload := models.Payload{
		FileURL:  info.URL,
		FileSize: info.Size,
		MimeType: info.Type,
		Label:    info.Filename,
	}
	return p.versions.AddVersion(ctx, evidenceID, payload, uploader, note)
}

func (p *Portal) RevertToVersion(ctx context.Context, actor models.Actor, evidenceID, versionID string) (*models.FileVersion, error) {
	v, err := p.versions.RevertToVersion(ctx, evidenceID, versionID, actor)
	if err != nil {
		return nil, err
	}
	p.record(ctx, actor.ID, models.ActionEvidenceReverted, evidenceID, v.Notes)
	return v, nil
}

func (p *Portal) DeleteVersion(ctx context.Context, actor models.Actor, versionID string) error {
	v, err := p.versions.DeleteVersion(ctx, versionID, actor)
	if err != nil {
		return err
	}
	p.record(ctx, actor.ID, models.ActionVersionDeleted, v.EvidenceID, fmt.Sprintf("version %d", v.Version))
	return nil
}

func (p *Portal) DeleteEvidence(ctx context.Context, actor models.Actor, evidenceID string) error {
	if err := p.versions.DeleteEvidence(ctx, evidenceID, actor); err != nil {
		return err
	}
	p.record(ctx, actor.ID, models.ActionEvidenceDeleted, evidenceID, "")
	return nil
}

func (p *Portal) History(ctx context.Context, evidenceID string) ([]models.FileVersion, error) {
	return p.versions.GetHistory(ctx, evidenceID)
}

func (p *Portal) Version(ctx context.Context, evidenceID string, version int) (*models.FileVersion, error) {
	return p.versions.GetVersion(ctx, evidenceID, version)
}

func (p *Portal) VerifyChain(ctx context.Context, evidenceID string) error {
	return p.versions.VerifyChain(ctx, evidenceID)
}

func (p *Portal) CreateCycle(ctx context.Context, draft models.NewCycle) (*models.AssessmentCycle, error) {
	return p.cycles.Create(ctx, draft)
}

func (p *Portal) UpdateCycle(ctx context.Context, cycleID string, patch models.CyclePatch) (*models.AssessmentCycle, error) {
	return p.cycles.Update(ctx, cycleID, patch)
}

func (p *Portal) ListCycles(ctx context.Context, orgID string) ([]models.AssessmentCycle, error) {
	return p.cycles.ListCycles(ctx, orgID)
}

func (p *Portal) ActiveCycle(ctx context.Context, orgID string) (*models.AssessmentCycle, error) {
	return p.cycles.GetActive(ctx, orgID)
}

// ActivateCycle switches the organization's active cycle and moves the
// deadline reminders over to it. Reminders go to the activating admin.
func (p *Portal) ActivateCycle(ctx context.Context, actor models.Actor, orgID, cycleID string) bool {
	entry := log.WithFields(log.Fields{"org": orgID, "cycle": cycleID, "actor": actor.ID})
	if !actor.Role.IsAdmin() {
		entry.Warn("cycle activation by non-admin refused")
		return false
	}

	previous, err := p.cycles.GetActive(ctx, orgID)
	if err != nil {
		entry.WithError(err).Error("loading active cycle")
	}
	if !p.cycles.Activate(ctx, orgID, cycleID) {
		return false
	}
	p.record(ctx, actor.ID, models.ActionCycleActivated, cycleID, orgID)

	if previous != nil && previous.ID != cycleID {
		p.cancelReminders(ctx, previous.ID)
	}
	p.cancelReminders(ctx, cycleID)

	active, err := p.cycles.GetActive(ctx, orgID)
	if err != nil || active == nil {
		entry.WithError(err).Error("reloading activated cycle")
		return true
	}
	if _, err := notifier.ScheduleCycle(ctx, p.queue, *active, []string{actor.ID}, p.now()); err != nil {
		entry.WithError(err).Error("scheduling cycle reminders")
	}
	return true
}

func (p *Portal) SubmitRegistration(ctx context.Context, reg *models.Registration) error {
	return p.registrations.Submit(ctx, reg)
}

func (p *Portal) PendingRegistrations(ctx context.Context, orgID string) (*services.RegistrationView, error) {
	return p.registrations.LoadPending(ctx, orgID)
}

func (p *Portal) ApproveRegistration(ctx context.Context, view *services.RegistrationView, id string, reviewer models.Actor) (*optimistic.Pending[[]models.Registration], error) {
	return p.registrations.Approve(ctx, view, id, reviewer)
}

func (p *Portal) RejectRegistration(ctx context.Context, view *services.RegistrationView, id string, reviewer models.Actor, reason string) (*optimistic.Pending[[]models.Registration], error) {
	return p.registrations.Reject(ctx, view, id, reviewer, reason)
}

func (p *Portal) AuditTrail(ctx context.Context, subject string) ([]models.AuditEvent, error) {
	return p.audit.BySubject(ctx, subject)
}

func (p *Portal) auditReview(ctx context.Context, reg models.Registration, reviewer models.Actor) error {
	action := models.ActionRegistrationApproved
	if reg.Status == models.RegistrationRejected {
		action = models.ActionRegistrationRejected
	}
	return p.audit.Record(ctx, reviewer.ID, action, reg.ID, reg.RejectReason)
}

func (p *Portal) notifyApplicant(ctx context.Context, reg models.Registration, _ models.Actor) error {
	_, err := p.queue.Enqueue(ctx, notifier.Notification{
		Kind:      notifier.KindRegistrationReviewed,
		Subject:   reg.ID,
		Recipient: reg.Email,
		Text:      notifier.ReviewText(reg),
		DueAt:     p.now(),
	})
	return err
}

// record writes an audit event after the change it describes is durable. A
// failure is logged and does not undo the change.
func (p *Portal) record(ctx context.Context, actor, action, subject, detail string) {
	if err := p.audit.Record(ctx, actor, action, subject, detail); err != nil {
		log.WithFields(log.Fields{"action": action, "subject": subject}).WithError(err).Error("recording audit event")
	}
}

func (p *Portal) cancelReminders(ctx context.Context, cycleID string) {
	if _, err := p.queue.RemoveSubject(ctx, cycleID); err != nil {
		log.WithField("cycle", cycleID).WithError(err).Error("cancelling cycle reminders")
	}
}
