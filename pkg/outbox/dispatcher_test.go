package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[int64]*Event
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{events: map[int64]*Event{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)) && len(out) < limit; id++ {
		if e, ok := s.events[id]; ok && e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusSent
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, cause string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.RetryCount++
	e.LastError = cause
	e.Status, e.NextRetryAt = NextAttempt(e.RetryCount, maxRetries, time.Now())
	return nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *fakeStore) ResetForReplay(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Status, e.RetryCount, e.NextRetryAt = StatusPending, 0, nil
	return nil
}

func (s *fakeStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, e := range s.events {
		if e.Status == StatusFailed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type published struct {
	routingKey string
	messageID  string
	traceID    string
}

type fakePublisher struct {
	err  error
	sent []published
}

func (p *fakePublisher) PublishRaw(ctx context.Context, routingKey, messageID string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{routingKey, messageID, trace.FromContext(ctx)})
	return nil
}

func mustEvent(t *testing.T, id int64, routingKey string, payload any) *Event {
	t.Helper()
	e, err := NewEvent("project", 1, routingKey, payload)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	e.ID = id
	return e
}

func TestDispatchPendingPublishesAndMarksSent(t *testing.T) {
	e1 := mustEvent(t, 1, "rating.recorded", map[string]any{"project_id": 1, "trace_id": "t-1"})
	e2 := mustEvent(t, 2, "project.stage_advanced", map[string]any{"project_id": 1})
	store := newFakeStore(e1, e2)
	pub := &fakePublisher{}

	d := NewDispatcher(store, pub, zaptest.NewLogger(t))
	if n := d.DispatchPending(context.Background()); n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}

	if e1.Status != StatusSent || e2.Status != StatusSent {
		t.Fatalf("statuses = %s, %s", e1.Status, e2.Status)
	}
	if pub.sent[0].messageID != e1.EventKey {
		t.Fatalf("message id = %q, want event key %q", pub.sent[0].messageID, e1.EventKey)
	}
	if pub.sent[0].traceID != "t-1" {
		t.Fatalf("trace id not restored from payload: %q", pub.sent[0].traceID)
	}
}

func TestDispatchFailureSchedulesRetryThenFails(t *testing.T) {
	e := mustEvent(t, 1, "approval.recorded", map[string]any{"project_id": 1})
	store := newFakeStore(e)
	pub := &fakePublisher{err: errors.New("broker down")}

	d := NewDispatcher(store, pub, zaptest.NewLogger(t)).WithMaxRetries(2)
	d.DispatchPending(context.Background())
	if e.Status != StatusPending || e.RetryCount != 1 || e.NextRetryAt == nil {
		t.Fatalf("after first failure: %+v", e)
	}

	d.DispatchPending(context.Background())
	if e.Status != StatusFailed || e.LastError != "broker down" {
		t.Fatalf("after second failure: %+v", e)
	}
}

func TestReplayFailedEvents(t *testing.T) {
	e := mustEvent(t, 1, "project.stage_advanced", map[string]any{"project_id": 1})
	e.Status = StatusFailed
	e.RetryCount = 5
	store := newFakeStore(e)
	pub := &fakePublisher{}

	svc := NewReplayService(store, pub, zaptest.NewLogger(t))
	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReplayFailedEvents: %v", err)
	}
	if n != 1 || e.Status != StatusSent || len(pub.sent) != 1 {
		t.Fatalf("replayed=%d status=%s published=%d", n, e.Status, len(pub.sent))
	}
}

func TestReplayUnknownEvent(t *testing.T) {
	svc := NewReplayService(newFakeStore(), &fakePublisher{}, zaptest.NewLogger(t))
	if err := svc.ReplayEvent(context.Background(), 99); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestNextAttempt(t *testing.T) {
	now := time.Unix(0, 0)
	status, next := NextAttempt(2, 5, now)
	if status != StatusPending || next == nil || next.Sub(now) != 10*time.Second {
		t.Fatalf("NextAttempt(2,5) = %s, %v", status, next)
	}
	status, next = NextAttempt(5, 5, now)
	if status != StatusFailed || next != nil {
		t.Fatalf("NextAttempt(5,5) = %s, %v", status, next)
	}
}
