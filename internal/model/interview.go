package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoundType identifies one of the three interview formats.
type RoundType string

const (
	RoundGroupDiscussion RoundType = "GD"
	RoundTechnical       RoundType = "TECHNICAL"
	RoundHR              RoundType = "HR"
)

// Valid reports whether r is a known round type.
func (r RoundType) Valid() bool {
	switch r {
	case RoundGroupDiscussion, RoundTechnical, RoundHR:
		return true
	}
	return false
}

// MultiTurn reports whether the round is a question loop (Technical, HR).
func (r RoundType) MultiTurn() bool {
	return r == RoundTechnical || r == RoundHR
}

// FinalEvaluationKey is the score map key holding the terminal evaluation.
const FinalEvaluationKey = "finalEvaluation"

// QuestionKey returns the score map key for the 1-based question number n.
func QuestionKey(n int) string {
	return fmt.Sprintf("question_%d", n)
}

// GDScore is the flat evaluation of a single group discussion response.
type GDScore struct {
	Relevance    int    `json:"Relevance"`
	Clarity      int    `json:"Clarity"`
	Depth        int    `json:"Depth"`
	Confidence   int    `json:"Confidence"`
	Grammar      int    `json:"Grammar"`
	OverallScore int    `json:"OverallScore"`
	Feedback     string `json:"feedBack"`
}

// QuestionEntry is one generated question with the candidate's answer and its
// evaluation. HR entries also carry the three HR sub-scores.
type QuestionEntry struct {
	Question            string `json:"question"`
	Response            string `json:"response"`
	Score               int    `json:"score"`
	Feedback            string `json:"feedback"`
	CommunicationSkills *int   `json:"communicationSkills,omitempty"`
	PersonalityFit      *int   `json:"personalityFit,omitempty"`
	Relevance           *int   `json:"relevance,omitempty"`
}

// Answered reports whether a response has been evaluated for this entry.
func (q QuestionEntry) Answered() bool {
	return q.Response != ""
}

// FinalEvaluation is the holistic evaluation over all questions of a
// multi-turn round. Technical rounds fill TechnicalKnowledge,
// ProblemSolvingSkills and CommunicationSkills; HR rounds fill
// CommunicationSkills, PersonalityFit and Relevance.
type FinalEvaluation struct {
	TechnicalKnowledge   *int   `json:"technicalKnowledge,omitempty"`
	ProblemSolvingSkills *int   `json:"problemSolvingSkills,omitempty"`
	CommunicationSkills  *int   `json:"communicationSkills,omitempty"`
	PersonalityFit       *int   `json:"personalityFit,omitempty"`
	Relevance            *int   `json:"relevance,omitempty"`
	OverallScore         int    `json:"overallScore"`
	Feedback             string `json:"feedback"`
}

// InterviewSession is one candidate's attempt at a round. The score state is
// a tagged union selected by Round: group discussions use GD, multi-turn
// rounds use Questions and Final.
type InterviewSession struct {
	ID                string
	OwnerID           int64
	Round             RoundType
	Topic             string
	CandidateResponse string

	GD        *GDScore
	Questions []QuestionEntry
	Final     *FinalEvaluation

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the score state matches the round type.
func (s *InterviewSession) Validate() error {
	if !s.Round.Valid() {
		return fmt.Errorf("%w: unknown round type %q", ErrValidation, s.Round)
	}
	if s.Round == RoundGroupDiscussion {
		if len(s.Questions) > 0 || s.Final != nil {
			return fmt.Errorf("%w: group discussion cannot hold questions", ErrValidation)
		}
		return nil
	}
	if s.GD != nil {
		return fmt.Errorf("%w: %s round cannot hold a group discussion score", ErrValidation, s.Round)
	}
	return nil
}

// Closed reports whether the session reached its terminal state.
func (s *InterviewSession) Closed() bool {
	if s.Round == RoundGroupDiscussion {
		return s.GD != nil
	}
	return s.Final != nil
}

// NextQuestionNumber is max(existing n)+1, or 1 for an empty session.
func (s *InterviewSession) NextQuestionNumber() int {
	return len(s.Questions) + 1
}

// CurrentQuestion returns the highest-numbered question and its number.
func (s *InterviewSession) CurrentQuestion() (*QuestionEntry, int, bool) {
	n := len(s.Questions)
	if n == 0 {
		return nil, 0, false
	}
	return &s.Questions[n-1], n, true
}

// PreviousQuestion returns the question before the current one, if any.
func (s *InterviewSession) PreviousQuestion() (*QuestionEntry, bool) {
	n := len(s.Questions)
	if n < 2 {
		return nil, false
	}
	return &s.Questions[n-2], true
}

// AnsweredQuestions returns the number of questions with an evaluated response.
func (s *InterviewSession) AnsweredQuestions() int {
	count := 0
	for _, q := range s.Questions {
		if q.Answered() {
			count++
		}
	}
	return count
}

// ScoreMap renders the score state in its wire shape: flat GD fields, or
// question_<n> entries plus an optional finalEvaluation.
func (s *InterviewSession) ScoreMap() map[string]any {
	out := make(map[string]any)
	if s.Round == RoundGroupDiscussion {
		if s.GD != nil {
			out["Relevance"] = s.GD.Relevance
			out["Clarity"] = s.GD.Clarity
			out["Depth"] = s.GD.Depth
			out["Confidence"] = s.GD.Confidence
			out["Grammar"] = s.GD.Grammar
			out["OverallScore"] = s.GD.OverallScore
			out["feedBack"] = s.GD.Feedback
		}
		return out
	}
	for i, q := range s.Questions {
		out[QuestionKey(i+1)] = q
	}
	if s.Final != nil {
		out[FinalEvaluationKey] = s.Final
	}
	return out
}

type sessionJSON struct {
	ID            string         `json:"_id"`
	UserID        int64          `json:"user_id"`
	InterviewType RoundType      `json:"interview_type"`
	Topic         string         `json:"topic"`
	Response      string         `json:"response"`
	Score         map[string]any `json:"score"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// MarshalJSON renders the session as the document shape the frontend reads.
func (s InterviewSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		ID:            s.ID,
		UserID:        s.OwnerID,
		InterviewType: s.Round,
		Topic:         s.Topic,
		Response:      s.CandidateResponse,
		Score:         s.ScoreMap(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
