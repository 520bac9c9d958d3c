package progression

import (
	"context"
	"fmt"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
)

// evaluate computes the consensus status of p at its current stage using tx.
// Consensus is unanimous: every active mentor, and at least one of them.
func evaluate(ctx context.Context, tx Tx, p *model.Project) (*ConsensusStatus, error) {
	mentorIDs, err := tx.Roster().ActiveMentorIDs(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list active mentors: %w", err)
	}
	approved, err := tx.Approvals().CountApproved(ctx, p.ID, p.CurrentStage)
	if err != nil {
		return nil, fmt.Errorf("count approvals: %w", err)
	}

	total := len(mentorIDs)
	return &ConsensusStatus{
		ProjectID:        p.ID,
		CurrentStage:     p.CurrentStage,
		TotalMentors:     total,
		ApprovedMentors:  approved,
		ConsensusReached: total > 0 && approved == total,
		mentorIDs:        mentorIDs,
	}, nil
}
