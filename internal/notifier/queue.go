package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	rdb "evidence-portal/pkg/db/redis"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const queueKey = "portal_notifications"

type Kind string

const (
	KindRegistrationReviewed Kind = "registration_reviewed"
	KindCycleHalf            Kind = "cycle_half"
	KindCycleQuarter         Kind = "cycle_quarter"
	KindCycleEnd             Kind = "cycle_end"
)

// Notification is one queued message. Subject is the id of the record it is
// about, so all notifications of a record can be cancelled together.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at"`
	Attempts  int       `json:"attempts,omitempty"`

	member string
}

// Queue is a redis sorted set of notifications scored by due time.
type Queue struct {
	store *rdb.Store
	key   string
}

func NewQueue(store *rdb.Store) *Queue {
	return &Queue{store: store, key: queueKey}
}

func (q *Queue) Enqueue(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return n, fmt.Errorf("encode notification: %w", err)
	}
	n.member = string(raw)
	if err := q.store.ZAdd(ctx, q.key, n.member, float64(n.DueAt.Unix())); err != nil {
		return n, fmt.Errorf("enqueue notification: %w", err)
	}
	return n, nil
}

// Due returns notifications due at or before now, earliest first.
func (q *Queue) Due(ctx context.Context, now time.Time) ([]Notification, error) {
	return q.rangeByScore(ctx, "-inf", strconv.FormatInt(now.Unix(), 10))
}

func (q *Queue) All(ctx context.Context) ([]Notification, error) {
	return q.rangeByScore(ctx, "-inf", "+inf")
}

func (q *Queue) Remove(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}
	members := make([]string, len(ns))
	for i, n := range ns {
		members[i] = n.member
	}
	_, err := q.store.ZRem(ctx, q.key, members...)
	return err
}

// Claim takes n off the queue. Only the caller that gets true may send it.
func (q *Queue) Claim(ctx context.Context, n Notification) (bool, error) {
	removed, err := q.store.ZRem(ctx, q.key, n.member)
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

// RemoveSubject drops every queued notification about subject.
func (q *Queue) RemoveSubject(ctx context.Context, subject string) (int, error) {
	all, err := q.All(ctx)
	if err != nil {
		return 0, err
	}
	var matched []Notification
	for _, n := range all {
		if n.Subject == subject {
			matched = append(matched, n)
		}
	}
	return len(matched), q.Remove(ctx, matched...)
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.store.ZCard(ctx, q.key)
}

func (q *Queue) rangeByScore(ctx context.Context, min, max string) ([]Notification, error) {
	entries, err := q.store.ZRangeByScoreWithScores(ctx, q.key, min, max)
	if err != nil {
		return nil, err
	}

	out := make([]Notification, 0, len(entries))
	for _, e := range entries {
		member, ok := e.Member.(string)
		if !ok {
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(member), &n); err != nil {
			log.WithError(err).Warnf("skipping undecodable notification %q", member)
			continue
		}
		n.member = member
		out = append(out, n)
	}
	return out, nil
}
