package memory

import (
	"context"
	"sort"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

// Append implements progression.ActivityLogSink.
func (s *Store) Append(_ context.Context, level, message string, metadata map[string]any) error {
	s.locked(func(st *state) {
		st.activitySeq++
		st.activity = append(st.activity, model.ActivityLog{
			ID:        st.activitySeq,
			Level:     level,
			Message:   message,
			Metadata:  metadata,
			CreatedAt: s.now(),
		})
	})
	return nil
}

// Create implements notify.NotificationSink.
func (s *Store) Create(_ context.Context, n *model.Notification) (bool, error) {
	created := true
	s.locked(func(st *state) {
		if n.EventKey != "" {
			for _, existing := range st.notifications {
				if existing.EventKey == n.EventKey && existing.RecipientType == n.RecipientType && existing.RecipientID == n.RecipientID {
					created = false
					return
				}
			}
		}
		st.notificationSeq++
		n.ID = st.notificationSeq
		n.CreatedAt = s.now()
		st.notifications = append(st.notifications, *n)
	})
	return created, nil
}

// MentorsByIDs implements notify.Directory.
func (s *Store) MentorsByIDs(_ context.Context, ids []int64) ([]model.Mentor, error) {
	var out []model.Mentor
	s.locked(func(st *state) {
		for _, id := range ids {
			if m, ok := st.mentors[id]; ok {
				out = append(out, m)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- outbox.Store ---

func (s *Store) GetPendingEvents(_ context.Context, limit int) ([]*outbox.Event, error) {
	var out []*outbox.Event
	s.locked(func(st *state) {
		now := s.now()
		for i := range st.events {
			e := st.events[i]
			if len(out) >= limit {
				break
			}
			if e.Status != outbox.StatusPending {
				continue
			}
			if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
				continue
			}
			out = append(out, &e)
		}
	})
	return out, nil
}

func (s *Store) updateEvent(eventID int64, fn func(e *outbox.Event)) error {
	err := outbox.ErrEventNotFound
	s.locked(func(st *state) {
		for i := range st.events {
			if st.events[i].ID == eventID {
				fn(&st.events[i])
				st.events[i].UpdatedAt = s.now()
				err = nil
				return
			}
		}
	})
	return err
}

func (s *Store) MarkAsSent(_ context.Context, eventID int64) error {
	return s.updateEvent(eventID, func(e *outbox.Event) {
		e.Status = outbox.StatusSent
		e.LastError = ""
	})
}

func (s *Store) MarkAsFailed(_ context.Context, eventID int64, cause string, maxRetries int) error {
	return s.updateEvent(eventID, func(e *outbox.Event) {
		e.RetryCount++
		e.LastError = cause
		e.Status, e.NextRetryAt = outbox.NextAttempt(e.RetryCount, maxRetries, s.now())
	})
}

func (s *Store) GetEventByID(_ context.Context, eventID int64) (*outbox.Event, error) {
	var found *outbox.Event
	s.locked(func(st *state) {
		for i := range st.events {
			if st.events[i].ID == eventID {
				e := st.events[i]
				found = &e
				return
			}
		}
	})
	if found == nil {
		return nil, outbox.ErrEventNotFound
	}
	return found, nil
}

func (s *Store) ResetForReplay(_ context.Context, eventID int64) error {
	return s.updateEvent(eventID, func(e *outbox.Event) {
		e.Status = outbox.StatusPending
		e.RetryCount = 0
		e.NextRetryAt = nil
	})
}

func (s *Store) GetFailedEvents(_ context.Context, limit int) ([]*outbox.Event, error) {
	var out []*outbox.Event
	s.locked(func(st *state) {
		for i := len(st.events) - 1; i >= 0 && len(out) < limit; i-- {
			if st.events[i].Status == outbox.StatusFailed {
				e := st.events[i]
				out = append(out, &e)
			}
		}
	})
	return out, nil
}
