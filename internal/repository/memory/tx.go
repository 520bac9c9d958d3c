package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

// txScope 所有仓储共享同一份被锁保护的 state
type txScope struct {
	st  *state
	now func() time.Time
}

func (t *txScope) Projects() progression.ProjectStore   { return projectRepo{t} }
func (t *txScope) Ratings() progression.RatingStore     { return ratingRepo{t} }
func (t *txScope) Approvals() progression.ApprovalStore { return approvalRepo{t} }
func (t *txScope) Roster() progression.MentorRoster     { return rosterRepo{t} }
func (t *txScope) Events() progression.EventWriter      { return eventRepo{t} }

type projectRepo struct{ *txScope }

func (r projectRepo) Get(_ context.Context, projectID int64) (*model.Project, error) {
	p, ok := r.st.projects[projectID]
	if !ok {
		return nil, notFound("project %d", projectID)
	}
	return &p, nil
}

func (r projectRepo) GetForUpdate(ctx context.Context, projectID int64) (*model.Project, error) {
	return r.Get(ctx, projectID)
}

func (r projectRepo) UpdatePercentage(_ context.Context, projectID int64, stage, percentage int) (bool, error) {
	p, ok := r.st.projects[projectID]
	if !ok {
		return false, notFound("project %d", projectID)
	}
	if p.CurrentStage != stage {
		return false, nil
	}
	p.CurrentPercentage = percentage
	p.UpdatedAt = r.now()
	r.st.projects[projectID] = p
	return true, nil
}

func (r projectRepo) AdvanceStage(_ context.Context, projectID int64, fromStage int, completed bool, at time.Time) (bool, error) {
	p, ok := r.st.projects[projectID]
	if !ok {
		return false, notFound("project %d", projectID)
	}
	if p.CurrentStage != fromStage {
		return false, nil
	}
	p.CurrentStage++
	if completed {
		p.Status = model.ProjectStatusCompleted
		if p.CompletionDate == nil {
			done := at
			p.CompletionDate = &done
		}
	}
	p.UpdatedAt = at
	r.st.projects[projectID] = p
	return true, nil
}

type ratingRepo struct{ *txScope }

func (r ratingRepo) Insert(_ context.Context, rating *model.Rating) error {
	r.st.ratingSeq++
	rating.ID = r.st.ratingSeq
	r.st.ratings = append(r.st.ratings, *rating)
	return nil
}

func (r ratingRepo) ListByProject(_ context.Context, projectID int64, limit int) ([]model.Rating, error) {
	var out []model.Rating
	for i := len(r.st.ratings) - 1; i >= 0 && len(out) < limit; i-- {
		if r.st.ratings[i].ProjectID == projectID {
			out = append(out, r.st.ratings[i])
		}
	}
	return out, nil
}

type approvalRepo struct{ *txScope }

func (r approvalRepo) Upsert(_ context.Context, projectID, mentorID int64, stage int, approved bool, at time.Time) (bool, error) {
	key := approvalKey{projectID, mentorID, stage}
	a, exists := r.st.approvals[key]
	if exists && a.Approved == approved {
		return false, nil
	}
	if !exists {
		r.st.approvalSeq++
		a = model.MentorStageApproval{ID: r.st.approvalSeq, ProjectID: projectID, MentorID: mentorID, Stage: stage}
	}
	a.Approved = approved
	a.ApprovalDate = nil
	if approved {
		when := at
		a.ApprovalDate = &when
	}
	r.st.approvals[key] = a
	return true, nil
}

func (r approvalRepo) Seed(_ context.Context, projectID, mentorID int64, stage int) (bool, error) {
	key := approvalKey{projectID, mentorID, stage}
	if _, exists := r.st.approvals[key]; exists {
		return false, nil
	}
	r.st.approvalSeq++
	r.st.approvals[key] = model.MentorStageApproval{
		ID:        r.st.approvalSeq,
		ProjectID: projectID,
		MentorID:  mentorID,
		Stage:     stage,
	}
	return true, nil
}

func (r approvalRepo) CountApproved(_ context.Context, projectID int64, stage int) (int, error) {
	n := 0
	for key, a := range r.st.approvals {
		if key.projectID != projectID || key.stage != stage || !a.Approved {
			continue
		}
		if pm, ok := r.st.roster[rosterKey{projectID, key.mentorID}]; ok && pm.IsActive {
			n++
		}
	}
	return n, nil
}

func (r approvalRepo) ListByStage(_ context.Context, projectID int64, stage int) ([]model.MentorStageApproval, error) {
	var out []model.MentorStageApproval
	for key, a := range r.st.approvals {
		if key.projectID == projectID && key.stage == stage {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MentorID < out[j].MentorID })
	return out, nil
}

type rosterRepo struct{ *txScope }

func (r rosterRepo) ActiveMentorIDs(_ context.Context, projectID int64) ([]int64, error) {
	return activeMentorIDs(r.st, projectID), nil
}

func (r rosterRepo) IsActive(_ context.Context, projectID, mentorID int64) (bool, error) {
	pm, ok := r.st.roster[rosterKey{projectID, mentorID}]
	return ok && pm.IsActive, nil
}

func activeMentorIDs(st *state, projectID int64) []int64 {
	var ids []int64
	for key, pm := range st.roster {
		if key.projectID == projectID && pm.IsActive {
			ids = append(ids, key.mentorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type eventRepo struct{ *txScope }

func (r eventRepo) Enqueue(_ context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	e, err := outbox.NewEvent(aggregateType, aggregateID, routingKey, payload)
	if err != nil {
		return err
	}
	r.st.eventSeq++
	now := r.now()
	e.ID = r.st.eventSeq
	e.CreatedAt = now
	e.UpdatedAt = now
	r.st.events = append(r.st.events, *e)
	return nil
}
