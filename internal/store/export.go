package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// ExportInterviews builds export-ready candidate results from all sessions,
// optionally restricted to one round type.
func (s *Store) ExportInterviews(ctx context.Context, round model.RoundType) ([]model.CandidateResult, error) {
	interviews, err := s.ListInterviews(ctx, InterviewFilter{Round: round})
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	// Track session count per candidate for session_number.
	sessionCount := make(map[int64]int)
	users := make(map[int64]*model.User)

	results := []model.CandidateResult{}
	for _, iv := range interviews {
		sessionCount[iv.OwnerID]++

		user, ok := users[iv.OwnerID]
		if !ok {
			user, err = s.GetUserByID(ctx, iv.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("get user %d: %w", iv.OwnerID, err)
			}
			users[iv.OwnerID] = user
		}

		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		results = append(results, model.CandidateResult{
			Username:      username,
			DisplayName:   displayName,
			SessionNumber: sessionCount[iv.OwnerID],
			Interview:     iv,
			OverallScore:  overallScore(&iv),
		})
	}
	return results, nil
}

func overallScore(iv *model.InterviewSession) *int {
	switch {
	case iv.GD != nil:
		return model.IntPtr(iv.GD.OverallScore)
	case iv.Final != nil:
		return model.IntPtr(iv.Final.OverallScore)
	}
	return nil
}
