package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/repository/memory"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/notify"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
)

type memDeduper struct {
	seen     map[string]bool
	released int
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: map[string]bool{}} }

func (d *memDeduper) AcquireOnce(_ context.Context, handler, key string) bool {
	k := handler + ":" + key
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, key string) {
	delete(d.seen, handler+":"+key)
	d.released++
}

type nopEmail struct{ sent int }

func (e *nopEmail) Send(context.Context, string, string, string) error {
	e.sent++
	return nil
}

type brokenSink struct{}

func (brokenSink) Create(context.Context, *model.Notification) (bool, error) {
	return false, errors.New("insert failed")
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestApprovalRecordedHandlerDedups(t *testing.T) {
	store := memory.NewStore()
	a := store.AddMentor("Amina", "amina@example.org")
	b := store.AddMentor("Brian", "brian@example.org")
	email := &nopEmail{}
	notifier := notify.NewNotifier(store, email, store, nil, zaptest.NewLogger(t))
	dedup := newMemDeduper()
	h := NewApprovalRecordedHandler(notifier, dedup, zaptest.NewLogger(t))

	raw := mustJSON(t, mqcontracts.ApprovalRecordedPayload{
		ProjectID:          1,
		ProjectName:        "Water ATM",
		MentorID:           a.ID,
		Stage:              1,
		RecipientMentorIDs: []int64{b.ID},
		ApprovedAt:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), raw); err != nil {
			t.Fatalf("Handle #%d: %v", i, err)
		}
	}

	if got := len(store.Notifications()); got != 1 {
		t.Fatalf("notifications = %d, want 1", got)
	}
	if email.sent != 1 {
		t.Fatalf("emails = %d, want 1", email.sent)
	}
}

func TestApprovalRecordedHandlerReleasesOnFailure(t *testing.T) {
	store := memory.NewStore()
	b := store.AddMentor("Brian", "")
	notifier := notify.NewNotifier(brokenSink{}, &nopEmail{}, store, nil, zaptest.NewLogger(t))
	dedup := newMemDeduper()
	h := NewApprovalRecordedHandler(notifier, dedup, zaptest.NewLogger(t))

	raw := mustJSON(t, mqcontracts.ApprovalRecordedPayload{
		ProjectID:          1,
		MentorID:           99,
		Stage:              1,
		RecipientMentorIDs: []int64{b.ID},
		ApprovedAt:         time.Now(),
	})
	if err := h.Handle(context.Background(), raw); err == nil {
		t.Fatal("expected error from failing notification sink")
	}
	if dedup.released != 1 {
		t.Fatalf("released = %d, want 1", dedup.released)
	}
	if len(dedup.seen) != 0 {
		t.Fatalf("dedup key still held after failure: %v", dedup.seen)
	}
}

func TestHandlersRejectMalformedPayload(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	notifier := notify.NewNotifier(store, &nopEmail{}, store, nil, log)
	engine := progression.NewEngine(store, store, log)

	handlers := map[string]interface {
		Handle(context.Context, json.RawMessage) error
	}{
		"approval": NewApprovalRecordedHandler(notifier, nil, log),
		"stage":    NewStageAdvancedHandler(notifier, nil, log),
		"mentor":   NewMentorAssignedHandler(engine.Consensus, log),
		"rating":   NewRatingRecordedHandler(store, nil, log),
	}
	for name, h := range handlers {
		if err := h.Handle(context.Background(), json.RawMessage(`{"project_id":`)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}

func TestStageAdvancedHandlerNotifiesLeadOnce(t *testing.T) {
	store := memory.NewStore()
	email := &nopEmail{}
	notifier := notify.NewNotifier(store, email, store, nil, zaptest.NewLogger(t))
	h := NewStageAdvancedHandler(notifier, newMemDeduper(), zaptest.NewLogger(t))

	raw := mustJSON(t, mqcontracts.StageAdvancedPayload{
		ProjectID:       3,
		ProjectName:     "AgriSense",
		LeadEmail:       "lead@example.org",
		OldStage:        2,
		NewStage:        3,
		Status:          model.ProjectStatusActive,
		ApprovedMentors: 2,
		TotalMentors:    2,
		AdvancedAt:      time.Now(),
	})
	for i := 0; i < 3; i++ {
		if err := h.Handle(context.Background(), raw); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	notes := store.Notifications()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].RecipientType != model.RecipientTypeProject || notes[0].RecipientID != 3 {
		t.Fatalf("unexpected recipient: %+v", notes[0])
	}
	if email.sent != 1 {
		t.Fatalf("emails = %d, want 1", email.sent)
	}
}

func TestMentorAssignedHandlerSeedsCurrentStage(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	p := store.AddProject("Clinic Queue", "", 2)
	m := store.AddMentor("Dana", "")
	if err := store.AssignMentor(p.ID, m.ID); err != nil {
		t.Fatalf("AssignMentor: %v", err)
	}
	engine := progression.NewEngine(store, store, log)
	h := NewMentorAssignedHandler(engine.Consensus, log)

	raw := mustJSON(t, mqcontracts.MentorAssignedPayload{ProjectID: p.ID, MentorID: m.ID})
	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), raw); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	rows := store.Approvals(p.ID, 2)
	if len(rows) != 1 {
		t.Fatalf("approval rows at stage 2 = %d, want 1", len(rows))
	}
	if rows[0].MentorID != m.ID || rows[0].Approved {
		t.Fatalf("unexpected seeded row: %+v", rows[0])
	}
}

func TestMentorAssignedHandlerUnknownProject(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	engine := progression.NewEngine(store, store, log)
	h := NewMentorAssignedHandler(engine.Consensus, log)

	err := h.Handle(context.Background(), mustJSON(t, mqcontracts.MentorAssignedPayload{ProjectID: 42, MentorID: 1}))
	if !errors.Is(err, progression.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRatingRecordedHandlerAppendsActivity(t *testing.T) {
	store := memory.NewStore()
	h := NewRatingRecordedHandler(store, newMemDeduper(), zaptest.NewLogger(t))

	raw := mustJSON(t, mqcontracts.RatingRecordedPayload{
		RatingID:        11,
		ProjectID:       4,
		MentorID:        2,
		Stage:           3,
		Percentage:      40,
		OverallProgress: 38,
		RatedAt:         time.Now(),
	})
	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), raw); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	logs := store.ActivityLogs()
	if len(logs) != 1 {
		t.Fatalf("activity logs = %d, want 1", len(logs))
	}
	if logs[0].Metadata["rating_id"] != int64(11) {
		t.Fatalf("metadata = %+v", logs[0].Metadata)
	}
}
