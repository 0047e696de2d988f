package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evidence-portal/internal/models"
	"evidence-portal/internal/notifier"
	"evidence-portal/internal/testdb"
	rdb "evidence-portal/pkg/db/redis"
	"evidence-portal/pkg/messenger"
	"evidence-portal/pkg/portalErrors"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = models.Actor{ID: "admin@example.org", Name: "Admin", Role: models.RoleAdmin}
	uploader = models.Uploader{ID: "unit@example.org", Name: "Unit"}
)

type fakeFiles map[string]*messenger.FileInfo

func (f fakeFiles) Info(_ context.Context, id string) (*messenger.FileInfo, error) {
	if info, ok := f[id]; ok {
		return info, nil
	}
	return nil, errors.New("file not found")
}

type recordingNotifier struct {
	mu   sync.Mutex
	to   []string
	sent chan struct{}
}

func (r *recordingNotifier) Send(_ context.Context, recipient, _ string) error {
	r.mu.Lock()
	r.to = append(r.to, recipient)
	r.mu.Unlock()
	r.sent <- struct{}{}
	return nil
}

func newTestPortal(t *testing.T, files FileLookup) (*Portal, *notifier.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	queue := notifier.NewQueue(rdb.NewStore(client))
	return NewPortal(testdb.Open(t), queue, files, time.Second), queue
}

func pdf(name string) models.Payload {
	return models.Payload{FileURL: "https://files.example/" + name, FileSize: 10, MimeType: "application/pdf", Label: name}
}

func TestRevertAndDeleteAreAudited(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPortal(t, nil)

	ev := &models.Evidence{UnitID: "unit-1", CategoryID: 1, CycleID: "cycle-1"}
	v1, err := p.CreateEvidence(ctx, ev, pdf("a.pdf"), uploader)
	require.NoError(t, err)
	v2, err := p.AddVersion(ctx, ev.ID, pdf("b.pdf"), uploader, "")
	require.NoError(t, err)

	v3, err := p.RevertToVersion(ctx, admin, ev.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)
	require.NoError(t, p.DeleteVersion(ctx, admin, v2.ID))

	trail, err := p.AuditTrail(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionEvidenceReverted, trail[0].Action)
	assert.Equal(t, models.ActionVersionDeleted, trail[1].Action)
	assert.Equal(t, admin.ID, trail[0].Actor)

	require.NoError(t, p.DeleteEvidence(ctx, admin, ev.ID))
	_, err = p.History(ctx, ev.ID)
	assert.ErrorIs(t, err, portalErrors.ErrNotFound)
}

func TestAddMessengerFile(t *testing.T) {
	ctx := context.Background()
	files := fakeFiles{"f-1": {Type: "application/pdf", Size: 4096, Filename: "report.pdf", URL: "https://files.example/report.pdf"}}
	p, _ := newTestPortal(t, files)

	ev := &models.Evidence{UnitID: "unit-1", CategoryID: 4, CycleID: "cycle-1"}
	_, err := p.CreateEvidence(ctx, ev, pdf("a.pdf"), uploader)
	require.NoError(t, err)

	v, err := p.AddMessengerFile(ctx, ev.ID, "f-1", uploader, "sent via bot")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, "report.pdf", v.Label)
	assert.Equal(t, int64(4096), v.FileSize)

	_, err = p.AddMessengerFile(ctx, ev.ID, "missing", uploader, "")
	assert.Error(t, err)
}

func TestAddMessengerFileWithoutBot(t *testing.T) {
	p, _ := newTestPortal(t, nil)

	_, err := p.AddMessengerFile(context.Background(), "ev", "f-1", uploader, "")
	assert.ErrorIs(t, err, messenger.ErrNoToken)
}

func TestActivateCycleMovesReminders(t *testing.T) {
	ctx := context.Background()
	p, queue := newTestPortal(t, nil)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	draft := models.NewCycle{
		OrgID:     "org-1",
		Year:      2026,
		Name:      "Annual review",
		StartDate: now,
		EndDate:   now.AddDate(0, 3, 0),
	}
	a, err := p.CreateCycle(ctx, draft)
	require.NoError(t, err)
	b, err := p.CreateCycle(ctx, draft)
	require.NoError(t, err)

	assert.False(t, p.ActivateCycle(ctx, models.Actor{ID: "u", Role: models.RoleUnit}, "org-1", a.ID))

	require.True(t, p.ActivateCycle(ctx, admin, "org-1", a.ID))
	all, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, n := range all {
		assert.Equal(t, a.ID, n.Subject)
		assert.Equal(t, admin.ID, n.Recipient)
	}

	// activating again does not duplicate reminders
	require.True(t, p.ActivateCycle(ctx, admin, "org-1", a.ID))
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.True(t, p.ActivateCycle(ctx, admin, "org-1", b.ID))
	all, err = queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, n := range all {
		assert.Equal(t, b.ID, n.Subject)
	}

	active, err := p.ActiveCycle(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)

	trail, err := p.AuditTrail(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestApproveRegistrationAuditsAndNotifies(t *testing.T) {
	ctx := context.Background()
	p, queue := newTestPortal(t, nil)

	reg := &models.Registration{OrgID: "org-1", Email: "applicant@example.org", FullName: "Applicant"}
	require.NoError(t, p.SubmitRegistration(ctx, reg))
	view, err := p.PendingRegistrations(ctx, "org-1")
	require.NoError(t, err)

	pending, err := p.ApproveRegistration(ctx, view, reg.ID, admin)
	require.NoError(t, err)
	_, err = pending.Wait(ctx)
	require.NoError(t, err)
	p.Drain()

	trail, err := p.AuditTrail(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.ActionRegistrationApproved, trail[0].Action)

	all, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "applicant@example.org", all[0].Recipient)
	assert.Equal(t, notifier.KindRegistrationReviewed, all[0].Kind)
}

func TestRejectRegistrationAudited(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPortal(t, nil)

	reg := &models.Registration{OrgID: "org-1", Email: "applicant@example.org"}
	require.NoError(t, p.SubmitRegistration(ctx, reg))
	view, err := p.PendingRegistrations(ctx, "org-1")
	require.NoError(t, err)

	pending, err := p.RejectRegistration(ctx, view, reg.ID, admin, "duplicate")
	require.NoError(t, err)
	_, err = pending.Wait(ctx)
	require.NoError(t, err)
	p.Drain()

	trail, err := p.AuditTrail(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.ActionRegistrationRejected, trail[0].Action)
	assert.Equal(t, "duplicate", trail[0].Detail)
}

func TestRunDeliversQueuedNotifications(t *testing.T) {
	p, queue := newTestPortal(t, nil)
	rec := &recordingNotifier{sent: make(chan struct{}, 4)}
	a := NewApp(p, queue, notifier.NewDispatcher(queue, rec, time.Minute), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := queue.Enqueue(ctx, notifier.Notification{Recipient: "a@example.org", Text: "hi", DueAt: time.Now().Add(-time.Second)})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-rec.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	cancel()
	require.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a@example.org"}, rec.to)
}
