package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
)

func (h *Handler) handleGDTopic(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sess, err := h.rounds.GenerateTopic(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"topic": sess.Topic, "interviewId": sess.ID})
}

type gdEvaluateRequest struct {
	InterviewID string `json:"interviewId" validate:"required"`
	Topic       string `json:"topic" validate:"required"`
	Response    string `json:"response" validate:"required"`
}

func (h *Handler) handleGDEvaluate(w http.ResponseWriter, r *http.Request) {
	var req gdEvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	score, err := h.rounds.EvaluateGD(r.Context(), user.ID, interview.EvaluateGDRequest{
		InterviewID: req.InterviewID,
		Topic:       req.Topic,
		Response:    req.Response,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"evaluation": score})
}

// scoreParam is an optional score sent either as a JSON number or as a
// numeric string. Empty and null values leave it unset.
type scoreParam struct {
	value *float64
}

func (p *scoreParam) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		p.value = nil
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("previousQuestionScore %q is not a number", s)
	}
	p.value = &f
	return nil
}

type questionRequest struct {
	InterviewID           string     `json:"interviewId"`
	JobRole               string     `json:"jobRole" validate:"required"`
	Experience            string     `json:"experience" validate:"required"`
	JobDescription        string     `json:"jobDescription"`
	PreviousQuestionScore scoreParam `json:"previousQuestionScore"`
}

func (h *Handler) handleQuestion(round model.RoundType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		user := model.UserFromContext(r.Context())
		res, err := h.rounds.GenerateQuestion(r.Context(), user.ID, round, interview.QuestionRequest{
			InterviewID:    req.InterviewID,
			JobRole:        req.JobRole,
			Experience:     req.Experience,
			JobDescription: req.JobDescription,
			PreviousScore:  req.PreviousQuestionScore.value,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOK(w, map[string]any{
			"question":    res.Question,
			"interviewId": res.Session.ID,
			"questionKey": res.Key,
			"score":       res.Session.ScoreMap(),
		})
	}
}

type submitRequest struct {
	InterviewID string `json:"interviewId" validate:"required"`
	Response    string `json:"response" validate:"required"`
}

func (h *Handler) handleSubmit(round model.RoundType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		user := model.UserFromContext(r.Context())
		res, err := h.rounds.SubmitResponse(r.Context(), user.ID, round, req.InterviewID, req.Response)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body := map[string]any{
			"question":             res.Entry.Question,
			"feedback":             res.Entry.Feedback,
			"currentQuestionScore": res.Entry.Score,
			"interviewId":          res.Session.ID,
			"questionKey":          res.Key,
			"prevQuestionObj":      res.Previous,
		}
		if round == model.RoundHR {
			body["communicationSkills"] = res.Entry.CommunicationSkills
			body["personalityFit"] = res.Entry.PersonalityFit
			body["relevance"] = res.Entry.Relevance
		}
		writeOK(w, body)
	}
}

type finalRequest struct {
	InterviewID string `json:"interviewId" validate:"required"`
}

func (h *Handler) handleFinal(round model.RoundType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		user := model.UserFromContext(r.Context())
		final, err := h.rounds.EvaluateFinal(r.Context(), user.ID, round, req.InterviewID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOK(w, map[string]any{
			"feedback":        final.Feedback,
			"overallScore":    final.OverallScore,
			"interviewId":     req.InterviewID,
			"finalEvaluation": final,
		})
	}
}

func (h *Handler) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.rounds.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"message": i18n.T(r.Context(), "InterviewDeleted")})
}

type reportRequest struct {
	InterviewType model.RoundType `json:"interviewType"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	interviews, err := h.rounds.Report(r.Context(), user.ID, model.RoundType(strings.ToUpper(string(req.InterviewType))))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{
		"message":    i18n.Tp(r.Context(), "InterviewsFound", len(interviews)),
		"interviews": interviews,
	})
}
