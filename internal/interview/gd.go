package interview

import (
	"context"
	"strings"

	"github.com/pavelanni/interviewer/internal/evaluation"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
)

// GenerateTopic starts a group discussion: it asks the oracle for a topic
// and creates a session holding it.
func (s *Service) GenerateTopic(ctx context.Context, ownerID int64) (*model.InterviewSession, error) {
	p, err := s.prompts.Topic()
	if err != nil {
		return nil, err
	}
	topic, err := s.generate(ctx, p, llm.Options{Operation: "gd_topic", Temperature: 0.9, MaxTokens: 100})
	if err != nil {
		return nil, err
	}
	sess := &model.InterviewSession{
		OwnerID: ownerID,
		Round:   model.RoundGroupDiscussion,
		Topic:   topic,
	}
	if err := s.store.CreateInterview(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// EvaluateGDRequest is the input of EvaluateGD.
type EvaluateGDRequest struct {
	InterviewID string
	Topic       string
	Response    string
}

// EvaluateGD scores a group discussion response and closes the session.
// Repeated calls overwrite the previous evaluation.
func (s *Service) EvaluateGD(ctx context.Context, ownerID int64, req EvaluateGDRequest) (*model.GDScore, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Response = strings.TrimSpace(req.Response)
	if req.InterviewID == "" || req.Topic == "" || req.Response == "" {
		return nil, validationError("interview ID, topic, and response are required")
	}
	sess, err := s.load(ctx, ownerID, req.InterviewID, model.RoundGroupDiscussion)
	if err != nil {
		return nil, err
	}

	p, err := s.prompts.GDEvaluation(req.Topic, req.Response)
	if err != nil {
		return nil, err
	}
	rubric := evaluation.GroupDiscussion
	scores, err := s.evaluate(ctx, p, llm.Options{Operation: "gd_evaluate", Temperature: 0.3, MaxTokens: 500, JSON: true}, rubric)
	if err != nil {
		return nil, err
	}

	sess.Topic = req.Topic
	sess.CandidateResponse = req.Response
	sess.GD = &model.GDScore{
		Relevance:    scores.Values["Relevance"],
		Clarity:      scores.Values["Clarity"],
		Depth:        scores.Values["Depth"],
		Confidence:   scores.Values["Confidence"],
		Grammar:      scores.Values["Grammar"],
		OverallScore: scores.Overall,
		Feedback:     scores.Feedback,
	}
	if err := s.store.UpdateInterview(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ObserveScore(string(model.RoundGroupDiscussion), "response", scores.Overall, rubric.OverallCap)
	return sess.GD, nil
}
