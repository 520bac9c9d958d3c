package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	p := s.AddProject("Solar Kiosk", "lead@example.org", 1)
	m := s.AddMentor("Amina", "amina@example.org")
	if err := s.AssignMentor(p.ID, m.ID); err != nil {
		t.Fatalf("AssignMentor: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx progression.Tx) error {
		if _, err := tx.Approvals().Seed(ctx, p.ID, m.ID, 1); err != nil {
			return err
		}
		if _, err := tx.Projects().UpdatePercentage(ctx, p.ID, 1, 40); err != nil {
			return err
		}
		if err := tx.Events().Enqueue(ctx, "project", p.ID, "x", map[string]int{"a": 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if got := s.Approvals(p.ID, 1); len(got) != 0 {
		t.Fatalf("approval rows survived rollback: %+v", got)
	}
	if got, _ := s.Project(p.ID); got.CurrentPercentage != 0 {
		t.Fatalf("percentage survived rollback: %d", got.CurrentPercentage)
	}
	if len(s.Events()) != 0 {
		t.Fatalf("outbox event survived rollback")
	}
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	s := NewStore()
	p := s.AddProject("Agri Drone", "", 1)

	func() {
		defer func() { _ = recover() }()
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx progression.Tx) error {
			_, _ = tx.Projects().UpdatePercentage(ctx, p.ID, 1, 90)
			panic("handler bug")
		})
	}()

	if got, _ := s.Project(p.ID); got.CurrentPercentage != 0 {
		t.Fatalf("percentage survived panic: %d", got.CurrentPercentage)
	}
}

func TestAdvanceStageCompareAndSet(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore()
	p := s.AddProject("HealthBot", "", 5)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx progression.Tx) error {
		ok, err := tx.Projects().AdvanceStage(ctx, p.ID, 4, false, at)
		if err != nil || ok {
			t.Fatalf("stale CAS: ok=%v err=%v", ok, err)
		}
		ok, err = tx.Projects().AdvanceStage(ctx, p.ID, 5, true, at)
		if err != nil || !ok {
			t.Fatalf("CAS: ok=%v err=%v", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	got, _ := s.Project(p.ID)
	if got.CurrentStage != 6 || got.Status != model.ProjectStatusCompleted {
		t.Fatalf("project = %+v", got)
	}
	if got.CompletionDate == nil || !got.CompletionDate.Equal(at) {
		t.Fatalf("completion date = %v", got.CompletionDate)
	}
}

func TestUpsertReportsChange(t *testing.T) {
	s := NewStore()
	p := s.AddProject("EdTech", "", 1)
	m := s.AddMentor("Kofi", "")
	_ = s.AssignMentor(p.ID, m.ID)
	now := time.Now()

	var results []bool
	_ = s.WithinTx(context.Background(), func(ctx context.Context, tx progression.Tx) error {
		for _, approved := range []bool{true, true, false, false} {
			changed, err := tx.Approvals().Upsert(ctx, p.ID, m.ID, 1, approved, now)
			if err != nil {
				return err
			}
			results = append(results, changed)
		}
		return nil
	})

	want := []bool{true, false, true, false}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("changed[%d] = %v, want %v (all %v)", i, results[i], want[i], results)
		}
	}
	rows := s.Approvals(p.ID, 1)
	if len(rows) != 1 || rows[0].Approved || rows[0].ApprovalDate != nil {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestCountApprovedIgnoresRevokedMentors(t *testing.T) {
	s := NewStore()
	p := s.AddProject("FinTech", "", 2)
	a := s.AddMentor("A", "")
	b := s.AddMentor("B", "")
	_ = s.AssignMentor(p.ID, a.ID)
	_ = s.AssignMentor(p.ID, b.ID)

	ctx := context.Background()
	_ = s.WithinTx(ctx, func(ctx context.Context, tx progression.Tx) error {
		_, _ = tx.Approvals().Upsert(ctx, p.ID, a.ID, 2, true, time.Now())
		_, _ = tx.Approvals().Upsert(ctx, p.ID, b.ID, 2, true, time.Now())
		return nil
	})
	if err := s.RevokeMentor(p.ID, b.ID); err != nil {
		t.Fatalf("RevokeMentor: %v", err)
	}

	_ = s.WithinTx(ctx, func(ctx context.Context, tx progression.Tx) error {
		n, _ := tx.Approvals().CountApproved(ctx, p.ID, 2)
		if n != 1 {
			t.Fatalf("CountApproved = %d, want 1", n)
		}
		ids, _ := tx.Roster().ActiveMentorIDs(ctx, p.ID)
		if len(ids) != 1 || ids[0] != a.ID {
			t.Fatalf("active ids = %v", ids)
		}
		return nil
	})

	if got := s.Approvals(p.ID, 2); len(got) != 2 {
		t.Fatalf("revoked mentor's approval row should be kept, got %d rows", len(got))
	}
}

func TestOutboxLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore().WithClock(func() time.Time { return now })
	p := s.AddProject("Water", "", 1)
	ctx := context.Background()

	_ = s.WithinTx(ctx, func(ctx context.Context, tx progression.Tx) error {
		return tx.Events().Enqueue(ctx, "project", p.ID, "project.stage_advanced", map[string]int64{"project_id": p.ID})
	})

	pending, _ := s.GetPendingEvents(ctx, 10)
	if len(pending) != 1 || pending[0].EventKey == "" {
		t.Fatalf("pending = %+v", pending)
	}
	id := pending[0].ID

	if err := s.MarkAsFailed(ctx, id, "down", 3); err != nil {
		t.Fatalf("MarkAsFailed: %v", err)
	}
	if pending, _ = s.GetPendingEvents(ctx, 10); len(pending) != 0 {
		t.Fatalf("event should wait for backoff")
	}
	now = now.Add(time.Minute)
	if pending, _ = s.GetPendingEvents(ctx, 10); len(pending) != 1 {
		t.Fatalf("event should be due after backoff")
	}

	_ = s.MarkAsFailed(ctx, id, "down", 2)
	failed, _ := s.GetFailedEvents(ctx, 10)
	if len(failed) != 1 || failed[0].Status != outbox.StatusFailed {
		t.Fatalf("failed = %+v", failed)
	}

	if err := s.ResetForReplay(ctx, id); err != nil {
		t.Fatalf("ResetForReplay: %v", err)
	}
	if err := s.MarkAsSent(ctx, id); err != nil {
		t.Fatalf("MarkAsSent: %v", err)
	}
	e, _ := s.GetEventByID(ctx, id)
	if e.Status != outbox.StatusSent || e.RetryCount != 0 {
		t.Fatalf("event = %+v", e)
	}
	if _, err := s.GetEventByID(ctx, 999); !errors.Is(err, outbox.ErrEventNotFound) {
		t.Fatalf("err = %v", err)
	}
}
