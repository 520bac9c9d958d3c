// Package memory is an in-process storage driver. A single mutex serializes
// transactions, and a failed transaction restores the snapshot taken at begin.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

type rosterKey struct {
	projectID int64
	mentorID  int64
}

type approvalKey struct {
	projectID int64
	mentorID  int64
	stage     int
}

type state struct {
	projects      map[int64]model.Project
	mentors       map[int64]model.Mentor
	roster        map[rosterKey]model.ProjectMentor
	ratings       []model.Rating
	approvals     map[approvalKey]model.MentorStageApproval
	activity      []model.ActivityLog
	notifications []model.Notification
	events        []outbox.Event

	projectSeq, mentorSeq, ratingSeq, approvalSeq int64
	activitySeq, notificationSeq, eventSeq        int64
}

func newState() *state {
	return &state{
		projects:  map[int64]model.Project{},
		mentors:   map[int64]model.Mentor{},
		roster:    map[rosterKey]model.ProjectMentor{},
		approvals: map[approvalKey]model.MentorStageApproval{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.projects = make(map[int64]model.Project, len(s.projects))
	for k, v := range s.projects {
		c.projects[k] = v
	}
	c.mentors = make(map[int64]model.Mentor, len(s.mentors))
	for k, v := range s.mentors {
		c.mentors[k] = v
	}
	c.roster = make(map[rosterKey]model.ProjectMentor, len(s.roster))
	for k, v := range s.roster {
		c.roster[k] = v
	}
	c.approvals = make(map[approvalKey]model.MentorStageApproval, len(s.approvals))
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	c.ratings = append([]model.Rating(nil), s.ratings...)
	c.activity = append([]model.ActivityLog(nil), s.activity...)
	c.notifications = append([]model.Notification(nil), s.notifications...)
	c.events = append([]outbox.Event(nil), s.events...)
	return &c
}

// Store implements progression.Transactor, outbox.Store and the notification
// sinks entirely in memory.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

// WithClock 替换时间源（测试用）
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithinTx 不可重入：fn 内不得再调用 Store 的其他加锁方法
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, &txScope{st: s.data, now: s.now})
}

func (s *Store) locked(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, progression.ErrRecordNotFound)...)
}
