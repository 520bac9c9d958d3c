package memory

import (
	"fmt"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

// Admin-side mutations. In production these tables are owned by the admin
// screens; the memory driver exposes them for local runs and tests.

// AddProject 新建 active 项目，stage 为 0 时从第 1 阶段开始
func (s *Store) AddProject(name, leadEmail string, stage int) model.Project {
	if stage == 0 {
		stage = model.MinStage
	}
	var p model.Project
	s.locked(func(st *state) {
		st.projectSeq++
		now := s.now()
		p = model.Project{
			ID:           st.projectSeq,
			Name:         name,
			LeadEmail:    leadEmail,
			CurrentStage: stage,
			Status:       model.ProjectStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		st.projects[p.ID] = p
	})
	return p
}

func (s *Store) AddMentor(name, email string) model.Mentor {
	var m model.Mentor
	s.locked(func(st *state) {
		st.mentorSeq++
		m = model.Mentor{ID: st.mentorSeq, Name: name, Email: email}
		st.mentors[m.ID] = m
	})
	return m
}

// AssignMentor 激活名单行；不会写投票行，由 mentor.assigned 处理负责 seed
func (s *Store) AssignMentor(projectID, mentorID int64) error {
	var err error
	s.locked(func(st *state) {
		if _, ok := st.projects[projectID]; !ok {
			err = notFound("project %d", projectID)
			return
		}
		if _, ok := st.mentors[mentorID]; !ok {
			err = notFound("mentor %d", mentorID)
			return
		}
		st.roster[rosterKey{projectID, mentorID}] = model.ProjectMentor{
			ProjectID:  projectID,
			MentorID:   mentorID,
			IsActive:   true,
			AssignedAt: s.now(),
		}
	})
	return err
}

// RevokeMentor 停用名单行，已有投票行保留
func (s *Store) RevokeMentor(projectID, mentorID int64) error {
	var err error
	s.locked(func(st *state) {
		key := rosterKey{projectID, mentorID}
		pm, ok := st.roster[key]
		if !ok {
			err = fmt.Errorf("mentor %d not on project %d", mentorID, projectID)
			return
		}
		pm.IsActive = false
		st.roster[key] = pm
	})
	return err
}

func (s *Store) SetProjectStatus(projectID int64, status string) error {
	var err error
	s.locked(func(st *state) {
		p, ok := st.projects[projectID]
		if !ok {
			err = notFound("project %d", projectID)
			return
		}
		p.Status = status
		p.UpdatedAt = s.now()
		st.projects[projectID] = p
	})
	return err
}

// --- read helpers ---

func (s *Store) Project(projectID int64) (model.Project, bool) {
	var (
		p  model.Project
		ok bool
	)
	s.locked(func(st *state) { p, ok = st.projects[projectID] })
	return p, ok
}

func (s *Store) Ratings(projectID int64) []model.Rating {
	var out []model.Rating
	s.locked(func(st *state) {
		for _, r := range st.ratings {
			if r.ProjectID == projectID {
				out = append(out, r)
			}
		}
	})
	return out
}

func (s *Store) Approvals(projectID int64, stage int) []model.MentorStageApproval {
	var out []model.MentorStageApproval
	s.locked(func(st *state) {
		for key, a := range st.approvals {
			if key.projectID == projectID && key.stage == stage {
				out = append(out, a)
			}
		}
	})
	return out
}

func (s *Store) ActivityLogs() []model.ActivityLog {
	var out []model.ActivityLog
	s.locked(func(st *state) { out = append(out, st.activity...) })
	return out
}

func (s *Store) Notifications() []model.Notification {
	var out []model.Notification
	s.locked(func(st *state) { out = append(out, st.notifications...) })
	return out
}

func (s *Store) Events() []outbox.Event {
	var out []outbox.Event
	s.locked(func(st *state) { out = append(out, st.events...) })
	return out
}
