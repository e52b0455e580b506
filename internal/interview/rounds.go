package interview

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pavelanni/interviewer/internal/evaluation"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
)

// QuestionRequest is the input of GenerateQuestion. An empty InterviewID
// starts a new session.
type QuestionRequest struct {
	InterviewID    string
	JobRole        string
	Experience     string
	JobDescription string
	// PreviousScore is the caller's score for the previous question, out of 100.
	PreviousScore *float64
}

// QuestionResult is the outcome of GenerateQuestion.
type QuestionResult struct {
	Session  *model.InterviewSession
	Key      string
	Question string
}

// SubmitResult is the outcome of SubmitResponse.
type SubmitResult struct {
	Session *model.InterviewSession
	Key     string
	Entry   model.QuestionEntry
	// Previous is the question before the one just scored, if any.
	Previous *model.QuestionEntry
}

func perQuestionRubric(round model.RoundType) evaluation.Rubric {
	if round == model.RoundHR {
		return evaluation.HR
	}
	return evaluation.TechnicalQuestion
}

func finalRubric(round model.RoundType) evaluation.Rubric {
	if round == model.RoundHR {
		return evaluation.HR
	}
	return evaluation.TechnicalFinal
}

func opName(round model.RoundType, step string) string {
	return strings.ToLower(string(round)) + "_" + step
}

func requireMultiTurn(round model.RoundType) error {
	if !round.MultiTurn() {
		return validationError(fmt.Sprintf("round %q has no question loop", round))
	}
	return nil
}

// GenerateQuestion appends the next question to a technical or HR session,
// creating the session when req.InterviewID is empty.
func (s *Service) GenerateQuestion(ctx context.Context, ownerID int64, round model.RoundType, req QuestionRequest) (*QuestionResult, error) {
	if err := requireMultiTurn(round); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.JobRole) == "" || strings.TrimSpace(req.Experience) == "" {
		return nil, validationError("job role and experience are required")
	}
	if p := req.PreviousScore; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 || *p > 100) {
		return nil, validationError("previous question score must be between 0 and 100")
	}

	resume, err := s.resumes.Resume(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resume) == "" {
		return nil, validationError("resume not found for the user")
	}

	var sess *model.InterviewSession
	if req.InterviewID != "" {
		sess, err = s.load(ctx, ownerID, req.InterviewID, round)
		if err != nil {
			return nil, err
		}
		if sess.Closed() {
			return nil, fmt.Errorf("%w: interview %s already has a final evaluation", model.ErrConflict, sess.ID)
		}
		if cur, n, ok := sess.CurrentQuestion(); ok && !cur.Answered() {
			return nil, fmt.Errorf("%w: %s of interview %s is still awaiting a response", model.ErrConflict, model.QuestionKey(n), sess.ID)
		}
	}

	p, err := s.prompts.Question(round, prompts.QuestionContext{
		JobRole:        req.JobRole,
		Experience:     req.Experience,
		JobDescription: req.JobDescription,
		Resume:         resume,
		PreviousScore:  req.PreviousScore,
	})
	if err != nil {
		return nil, err
	}
	question, err := s.generate(ctx, p, llm.Options{Operation: opName(round, "question"), Temperature: 0.7, MaxTokens: 200})
	if err != nil {
		return nil, err
	}

	entry := model.QuestionEntry{Question: question}
	if sess == nil {
		sess = &model.InterviewSession{
			OwnerID:   ownerID,
			Round:     round,
			Questions: []model.QuestionEntry{entry},
		}
		if err := s.store.CreateInterview(ctx, sess); err != nil {
			return nil, err
		}
	} else {
		sess.Questions = append(sess.Questions, entry)
		if err := s.store.UpdateInterview(ctx, sess); err != nil {
			return nil, err
		}
	}

	return &QuestionResult{
		Session:  sess,
		Key:      model.QuestionKey(len(sess.Questions)),
		Question: question,
	}, nil
}

// SubmitResponse scores the candidate's answer to the latest question.
func (s *Service) SubmitResponse(ctx context.Context, ownerID int64, round model.RoundType, interviewID, response string) (*SubmitResult, error) {
	if err := requireMultiTurn(round); err != nil {
		return nil, err
	}
	response = strings.TrimSpace(response)
	if interviewID == "" || response == "" {
		return nil, validationError("interview ID and response are required")
	}
	sess, err := s.load(ctx, ownerID, interviewID, round)
	if err != nil {
		return nil, err
	}
	if sess.Closed() {
		return nil, fmt.Errorf("%w: interview %s already has a final evaluation", model.ErrConflict, sess.ID)
	}
	cur, n, ok := sess.CurrentQuestion()
	if !ok {
		return nil, validationError("no questions found")
	}
	if cur.Answered() {
		return nil, fmt.Errorf("%w: %s of interview %s is already answered", model.ErrConflict, model.QuestionKey(n), sess.ID)
	}

	p, err := s.prompts.ResponseEvaluation(round, cur.Question, response)
	if err != nil {
		return nil, err
	}
	rubric := perQuestionRubric(round)
	scores, err := s.evaluate(ctx, p, llm.Options{Operation: opName(round, "submit"), Temperature: 0.3, MaxTokens: 500, JSON: true}, rubric)
	if err != nil {
		return nil, err
	}

	cur.Response = response
	cur.Score = scores.Overall
	cur.Feedback = scores.Feedback
	if round == model.RoundHR {
		cur.CommunicationSkills = model.IntPtr(scores.Values["CommunicationSkills"])
		cur.PersonalityFit = model.IntPtr(scores.Values["PersonalityFit"])
		cur.Relevance = model.IntPtr(scores.Values["Relevance"])
	}
	if err := s.store.UpdateInterview(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ObserveScore(string(round), "question", scores.Overall, rubric.OverallCap)

	res := &SubmitResult{Session: sess, Key: model.QuestionKey(n), Entry: *cur}
	if prev, ok := sess.PreviousQuestion(); ok {
		prevCopy := *prev
		res.Previous = &prevCopy
	}
	return res, nil
}

// EvaluateFinal scores all questions of the round together and stores the
// result as the session's final evaluation, replacing any earlier one.
func (s *Service) EvaluateFinal(ctx context.Context, ownerID int64, round model.RoundType, interviewID string) (*model.FinalEvaluation, error) {
	if err := requireMultiTurn(round); err != nil {
		return nil, err
	}
	if interviewID == "" {
		return nil, validationError("interview ID is required")
	}
	sess, err := s.load(ctx, ownerID, interviewID, round)
	if err != nil {
		return nil, err
	}
	if len(sess.Questions) == 0 {
		return nil, validationError("no questions to evaluate")
	}
	if sess.AnsweredQuestions() == 0 {
		return nil, validationError("no answered questions to evaluate")
	}

	p, err := s.prompts.FinalEvaluation(round, sess.Questions)
	if err != nil {
		return nil, err
	}
	rubric := finalRubric(round)
	scores, err := s.evaluate(ctx, p, llm.Options{Operation: opName(round, "evaluate"), Temperature: 0.1, MaxTokens: 600, JSON: true}, rubric)
	if err != nil {
		return nil, err
	}

	final := &model.FinalEvaluation{
		OverallScore: scores.Overall,
		Feedback:     scores.Feedback,
	}
	if round == model.RoundHR {
		final.CommunicationSkills = model.IntPtr(scores.Values["CommunicationSkills"])
		final.PersonalityFit = model.IntPtr(scores.Values["PersonalityFit"])
		final.Relevance = model.IntPtr(scores.Values["Relevance"])
	} else {
		final.TechnicalKnowledge = model.IntPtr(scores.Values["TechnicalKnowledge"])
		final.ProblemSolvingSkills = model.IntPtr(scores.Values["ProblemSolvingSkills"])
		final.CommunicationSkills = model.IntPtr(scores.Values["CommunicationSkills"])
	}
	sess.Final = final
	if err := s.store.UpdateInterview(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ObserveScore(string(round), "final", scores.Overall, rubric.OverallCap)
	return final, nil
}
