package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed prompts.yaml
var defaultCatalog []byte

var (
	candidateResponseRegex  = regexp.MustCompile(`(?i)</?\s*candidate-response\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxResponseRunes = 10000

// Prompt is a rendered system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Difficulty is the adjustment applied to the next generated question.
type Difficulty string

const (
	// DifficultyBaseline is used for the opening question.
	DifficultyBaseline Difficulty = "baseline"
	DifficultyIncrease Difficulty = "increase"
	DifficultyDecrease Difficulty = "decrease"
	DifficultyHold     Difficulty = "hold"
)

// DifficultyFor maps the previous question's score to a difficulty rule:
// above 70% of max raises it, below 40% lowers it, anything else holds.
func DifficultyFor(prev *float64, max float64) Difficulty {
	if prev == nil || max <= 0 {
		return DifficultyBaseline
	}
	ratio := *prev / max
	switch {
	case ratio > 0.7:
		return DifficultyIncrease
	case ratio < 0.4:
		return DifficultyDecrease
	}
	return DifficultyHold
}

// QuestionContext is the candidate context for technical and HR questions.
type QuestionContext struct {
	JobRole        string
	Experience     string
	JobDescription string
	Resume         string
	// PreviousScore is the score of the previous question out of 100, if any.
	PreviousScore *float64
}

type entry struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type pair struct {
	system *template.Template
	user   *template.Template
}

// Catalog holds parsed prompt templates.
type Catalog struct {
	pairs map[string]pair
}

var requiredEntries = []string{
	"topic", "gd_evaluation",
	"technical_question", "hr_question",
	"technical_response", "hr_response",
	"technical_final", "hr_final",
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Parse builds a Catalog from YAML. Every entry the round controller uses
// must be present.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompt catalog: %w", err)
	}
	c := &Catalog{pairs: make(map[string]pair, len(raw))}
	for _, name := range requiredEntries {
		e, ok := raw[name]
		if !ok || strings.TrimSpace(e.User) == "" {
			return nil, fmt.Errorf("prompt catalog: missing entry %q", name)
		}
		var p pair
		var err error
		if p.user, err = template.New(name).Funcs(funcs).Option("missingkey=error").Parse(e.User); err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		if e.System != "" {
			if p.system, err = template.New(name + ".system").Funcs(funcs).Parse(e.System); err != nil {
				return nil, fmt.Errorf("parse prompt %s system: %w", name, err)
			}
		}
		c.pairs[name] = p
	}
	return c, nil
}

var (
	loadOnce   sync.Once
	loadErr    error
	defaultCat *Catalog
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	loadOnce.Do(func() {
		defaultCat, loadErr = Parse(defaultCatalog)
	})
	return defaultCat, loadErr
}

func (c *Catalog) render(name string, data any) (Prompt, error) {
	p, ok := c.pairs[name]
	if !ok {
		return Prompt{}, errors.New("unknown prompt: " + name)
	}
	var out Prompt
	var buf bytes.Buffer
	if p.system != nil {
		if err := p.system.Execute(&buf, data); err != nil {
			return Prompt{}, err
		}
		out.System = strings.TrimSpace(buf.String())
		buf.Reset()
	}
	if err := p.user.Execute(&buf, data); err != nil {
		return Prompt{}, err
	}
	out.User = strings.TrimSpace(buf.String())
	return out, nil
}

func roundPrefix(round model.RoundType) (string, error) {
	switch round {
	case model.RoundTechnical:
		return "technical", nil
	case model.RoundHR:
		return "hr", nil
	}
	return "", fmt.Errorf("%w: round %q has no question prompts", model.ErrValidation, round)
}

// Topic builds the group discussion topic prompt.
func (c *Catalog) Topic() (Prompt, error) {
	return c.render("topic", nil)
}

// GDEvaluation builds the group discussion evaluation prompt.
func (c *Catalog) GDEvaluation(topic, response string) (Prompt, error) {
	return c.render("gd_evaluation", struct {
		Topic, Response string
	}{
		Topic:    sanitizeInline(topic),
		Response: sanitizeResponse(response),
	})
}

// Question builds the next-question prompt for a technical or HR round.
func (c *Catalog) Question(round model.RoundType, qc QuestionContext) (Prompt, error) {
	prefix, err := roundPrefix(round)
	if err != nil {
		return Prompt{}, err
	}
	prev := "N/A"
	if qc.PreviousScore != nil {
		prev = strconv.FormatFloat(*qc.PreviousScore, 'f', -1, 64)
	}
	return c.render(prefix+"_question", struct {
		JobRole, Experience, JobDescription, Resume, PreviousScore string
		Difficulty                                                 Difficulty
	}{
		JobRole:        sanitizeInline(qc.JobRole),
		Experience:     sanitizeInline(qc.Experience),
		JobDescription: sanitizeInline(qc.JobDescription),
		Resume:         truncate(strings.TrimSpace(qc.Resume)),
		PreviousScore:  prev,
		Difficulty:     DifficultyFor(qc.PreviousScore, 100),
	})
}

// ResponseEvaluation builds the prompt scoring one answer.
func (c *Catalog) ResponseEvaluation(round model.RoundType, question, response string) (Prompt, error) {
	prefix, err := roundPrefix(round)
	if err != nil {
		return Prompt{}, err
	}
	return c.render(prefix+"_response", struct {
		Question, Response string
	}{
		Question: sanitizeInline(question),
		Response: sanitizeResponse(response),
	})
}

// FinalEvaluation builds the holistic prompt over all questions of a round.
func (c *Catalog) FinalEvaluation(round model.RoundType, questions []model.QuestionEntry) (Prompt, error) {
	prefix, err := roundPrefix(round)
	if err != nil {
		return Prompt{}, err
	}
	type qa struct{ Question, Response string }
	items := make([]qa, 0, len(questions))
	for _, q := range questions {
		items = append(items, qa{Question: sanitizeInline(q.Question), Response: sanitizeResponse(q.Response)})
	}
	return c.render(prefix+"_final", struct{ Questions []qa }{Questions: items})
}

// sanitizeResponse strips tags that could break out of the response block and
// bounds its length.
func sanitizeResponse(s string) string {
	s = candidateResponseRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "[No answer provided]"
	}
	return truncate(s)
}

func sanitizeInline(s string) string {
	s = candidateResponseRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) > maxResponseRunes {
		runes := []rune(s)
		return string(runes[:maxResponseRunes]) + "\n\n[Answer truncated due to length]"
	}
	return s
}
