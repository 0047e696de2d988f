package notifier

import (
	"context"
	"fmt"
	"time"

	"evidence-portal/internal/models"
	"github.com/hako/durafmt"
)

type checkpoint struct {
	kind     Kind
	fraction float64
}

// Reminders go out halfway, three quarters of the way and at the end of the
// time left when the cycle is activated.
var cycleCheckpoints = []checkpoint{
	{KindCycleHalf, 0.5},
	{KindCycleQuarter, 0.75},
	{KindCycleEnd, 1},
}

// ScheduleCycle queues deadline reminders of cycle for every recipient.
// Nothing is queued once the end date has passed.
func ScheduleCycle(ctx context.Context, q *Queue, cycle models.AssessmentCycle, recipients []string, now time.Time) ([]Notification, error) {
	left := cycle.EndDate.Sub(now)
	if left <= 0 {
		return nil, nil
	}

	var queued []Notification
	for _, cp := range cycleCheckpoints {
		due := now.Add(time.Duration(float64(left) * cp.fraction))
		text := reminderText(cycle, cp.kind, cycle.EndDate.Sub(due))

		for _, r := range recipients {
			n, err := q.Enqueue(ctx, Notification{
				Kind:      cp.kind,
				Subject:   cycle.ID,
				Recipient: r,
				Text:      text,
				DueAt:     due,
			})
			if err != nil {
				return queued, err
			}
			queued = append(queued, n)
		}
	}
	return queued, nil
}

func reminderText(cycle models.AssessmentCycle, kind Kind, left time.Duration) string {
	if kind == KindCycleEnd {
		return fmt.Sprintf("Assessment cycle %q (%d) has reached its end date", cycle.Name, cycle.Year)
	}
	return fmt.Sprintf("Assessment cycle %q (%d) closes in %s, upload missing evidence before %s",
		cycle.Name, cycle.Year,
		durafmt.Parse(left.Round(time.Minute)).LimitFirstN(2).String(),
		cycle.EndDate.Format("02 Jan 2006"))
}

// ReviewText is the message an applicant gets once their registration is
// reviewed.
func ReviewText(reg models.Registration) string {
	switch reg.Status {
	case models.RegistrationApproved:
		return "Your registration for the evidence portal was approved"
	case models.RegistrationRejected:
		if reg.RejectReason != "" {
			return fmt.Sprintf("Your registration for the evidence portal was rejected: %s", reg.RejectReason)
		}
		return "Your registration for the evidence portal was rejected"
	}
	return fmt.Sprintf("Your registration for the evidence portal is %s", reg.Status)
}
