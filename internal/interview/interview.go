// Package interview implements the round controller: the per-session state
// machine behind group discussion, technical and HR rounds.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/interviewer/internal/evaluation"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

// Store persists interview sessions.
type Store interface {
	CreateInterview(ctx context.Context, sess *model.InterviewSession) error
	GetInterview(ctx context.Context, id string) (*model.InterviewSession, error)
	UpdateInterview(ctx context.Context, sess *model.InterviewSession) error
	DeleteInterview(ctx context.Context, id string) error
	ListInterviews(ctx context.Context, f store.InterviewFilter) ([]model.InterviewSession, error)
}

// ResumeProvider returns the stored resume text of a user.
type ResumeProvider interface {
	Resume(ctx context.Context, userID int64) (string, error)
}

// Oracle is the LLM text-completion endpoint.
type Oracle interface {
	Complete(ctx context.Context, system, user string, opts llm.Options) (string, error)
}

// Service runs round transitions. It holds no per-session state; every call
// reloads the session and writes it back in a single versioned update.
type Service struct {
	store   Store
	resumes ResumeProvider
	oracle  Oracle
	prompts *prompts.Catalog
	parser  *evaluation.Parser
}

// NewService wires a round controller.
func NewService(st Store, resumes ResumeProvider, oracle Oracle, catalog *prompts.Catalog, parser *evaluation.Parser) *Service {
	if parser == nil {
		parser = evaluation.NewParser(nil)
	}
	return &Service{
		store:   st,
		resumes: resumes,
		oracle:  oracle,
		prompts: catalog,
		parser:  parser,
	}
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, msg)
}

// load returns a session owned by ownerID. Sessions of other users are
// reported as not found.
func (s *Service) load(ctx context.Context, ownerID int64, id string, round model.RoundType) (*model.InterviewSession, error) {
	sess, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, fmt.Errorf("interview %s: %w", id, model.ErrNotFound)
	}
	if round != "" && sess.Round != round {
		return nil, fmt.Errorf("%w: interview %s is a %s round, not %s", model.ErrValidation, id, sess.Round, round)
	}
	return sess, nil
}

func (s *Service) evaluate(ctx context.Context, p prompts.Prompt, opts llm.Options, rubric evaluation.Rubric) (evaluation.Scores, error) {
	raw, err := s.oracle.Complete(ctx, p.System, p.User, opts)
	if err != nil {
		return evaluation.Scores{}, err
	}
	res, err := s.parser.Parse(raw)
	if err != nil {
		var pe *evaluation.ParseError
		if errors.As(err, &pe) {
			model.LoggerFrom(ctx).WarnContext(ctx, "unparsable evaluation", "operation", opts.Operation, "reason", pe.Reason, "raw", pe.Raw)
		}
		return evaluation.Scores{}, err
	}
	scores := rubric.Score(res)
	if len(scores.Missing) > 0 {
		model.LoggerFrom(ctx).WarnContext(ctx, "evaluation fields missing or unparsable, scored 0",
			"operation", opts.Operation, "fields", scores.Missing)
	}
	return scores, nil
}

// singleLine trims a generated topic or question to its first non-empty line
// without wrapping quotes.
func singleLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func (s *Service) generate(ctx context.Context, p prompts.Prompt, opts llm.Options) (string, error) {
	raw, err := s.oracle.Complete(ctx, p.System, p.User, opts)
	if err != nil {
		return "", err
	}
	text := singleLine(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion for %s", model.ErrOracleUnavailable, opts.Operation)
	}
	return text, nil
}

// Delete removes a session. Only its owner may delete it.
func (s *Service) Delete(ctx context.Context, ownerID int64, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationError("interview ID is required")
	}
	sess, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return err
	}
	if sess.OwnerID != ownerID {
		return fmt.Errorf("interview %s: %w", id, model.ErrForbidden)
	}
	if err := s.store.DeleteInterview(ctx, id); err != nil {
		return err
	}
	model.LoggerFrom(ctx).InfoContext(ctx, "interview deleted", "interview_id", id, "owner_id", ownerID)
	return nil
}

// Report lists the caller's sessions, optionally of one round type.
func (s *Service) Report(ctx context.Context, ownerID int64, round model.RoundType) ([]model.InterviewSession, error) {
	if round != "" && !round.Valid() {
		return nil, validationError(fmt.Sprintf("unknown interview type %q", round))
	}
	return s.store.ListInterviews(ctx, store.InterviewFilter{OwnerID: ownerID, Round: round})
}
