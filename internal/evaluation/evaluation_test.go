package evaluation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/pavelanni/interviewer/internal/model"
)

func TestExtractAndCap(t *testing.T) {
	tests := []struct {
		name string
		in   any
		max  int
		want int
	}{
		{"fraction", "37/40", 40, 37},
		{"over cap string", "999", 30, 30},
		{"garbage", "abc", 40, 0},
		{"fraction with spaces", " 8 / 10 ", 10, 8},
		{"decimal string", "7.9/10", 10, 7},
		{"trailing text", "25 points", 30, 25},
		{"negative", "-5", 10, 0},
		{"json number", json.Number("35"), 30, 30},
		{"json number decimal", json.Number("12.5"), 40, 12},
		{"float", 9.0, 10, 9},
		{"int", 4, 10, 4},
		{"nil", nil, 10, 0},
		{"bool", true, 10, 0},
		{"empty", "", 10, 0},
		{"slash only", "/40", 40, 0},
		{"map", map[string]any{"a": 1}, 10, 0},
		{"json number exponent", json.Number("4e1"), 40, 40},
		{"json number decimal exponent", json.Number("2.5e1"), 30, 25},
		{"json number exponent over cap", json.Number("1e3"), 30, 30},
		{"json number beyond int64", json.Number("99999999999999999999"), 30, 30},
		{"json number beyond float64", json.Number("1e400"), 30, 30},
		{"huge fraction", "99999999999999999999/100", 30, 30},
		{"exponent string", "2.5e1", 30, 25},
		{"huge float", 1e300, 30, 30},
		{"negative huge float", -1e300, 30, 0},
		{"infinite float", math.Inf(1), 30, 30},
		{"nan float", math.NaN(), 30, 0},
		{"nan string", "NaN", 30, 0},
		{"inf string", "Inf", 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAndCap(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("ExtractAndCap(%v, %d) = %d, want %d", tt.in, tt.max, got, tt.want)
			}
			if got < 0 || got > tt.max {
				t.Errorf("result %d out of [0, %d]", got, tt.max)
			}
		})
	}
}

func TestParse(t *testing.T) {
	p := NewParser(nil)

	res, err := p.Parse("Here is the result: {\"a\":1,\"b\":2} Thanks!")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(res))
	}
	if res["a"] != json.Number("1") || res["b"] != json.Number("2") {
		t.Errorf("unexpected result: %#v", res)
	}

	nested, err := p.Parse("```json\n{\"score\": {\"x\": 1}, \"feedBack\": \"ok\"}\n```")
	if err != nil {
		t.Fatalf("Parse nested: %v", err)
	}
	if nested["feedBack"] != "ok" {
		t.Errorf("expected feedBack ok, got %v", nested["feedBack"])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no braces", "I cannot evaluate this answer."},
		{"reversed braces", "} nothing here {"},
		{"broken json", "{\"a\": 1,,}"},
		{"two objects", "{\"a\":1} and {\"b\":2}"},
	}
	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.raw)
			if !errors.Is(err, model.ErrUnparsableEvaluation) {
				t.Fatalf("expected ErrUnparsableEvaluation, got %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if pe.Raw != tt.raw {
				t.Errorf("raw text not preserved: %q", pe.Raw)
			}
		})
	}
}

type lineExtractor struct{}

func (lineExtractor) Extract(raw string) (string, bool) {
	return raw, raw != ""
}

func TestParserCustomExtractor(t *testing.T) {
	p := NewParser(lineExtractor{})
	if _, err := p.Parse("prose {\"a\":1}"); err == nil {
		t.Error("strict extractor should reject surrounding prose")
	}
	if _, err := p.Parse("{\"a\":1}"); err != nil {
		t.Errorf("strict extractor should accept bare JSON: %v", err)
	}
}

func TestRubricScore(t *testing.T) {
	tests := []struct {
		name        string
		rubric      Rubric
		res         Result
		wantOverall int
		wantMissing int
		wantValues  map[string]int
	}{
		{
			name:   "technical final caps before summing",
			rubric: TechnicalFinal,
			res: Result{
				"TechnicalKnowledge":   json.Number("40"),
				"ProblemSolvingSkills": json.Number("30"),
				"CommunicationSkills":  json.Number("35"),
			},
			wantOverall: 100,
			wantValues:  map[string]int{"TechnicalKnowledge": 40, "ProblemSolvingSkills": 30, "CommunicationSkills": 30},
		},
		{
			name:   "group discussion fractions",
			rubric: GroupDiscussion,
			res: Result{
				"Relevance": "8/10", "Clarity": "7/10", "Depth": "6/10",
				"Confidence": "9/10", "Grammar": "10/10", "OverallScore": "99/50",
			},
			wantOverall: 40,
		},
		{
			name:   "hr partial garbage",
			rubric: HR,
			res: Result{
				"CommunicationSkills": "30/40",
				"PersonalityFit":      "excellent",
			},
			wantOverall: 30,
			wantMissing: 2,
		},
		{
			name:        "technical question",
			rubric:      TechnicalQuestion,
			res:         Result{"responseScore": "85/100"},
			wantOverall: 85,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.rubric.Score(tt.res)
			if s.Overall != tt.wantOverall {
				t.Errorf("overall = %d, want %d", s.Overall, tt.wantOverall)
			}
			if s.Overall > tt.rubric.OverallCap {
				t.Errorf("overall %d exceeds cap %d", s.Overall, tt.rubric.OverallCap)
			}
			if len(s.Missing) != tt.wantMissing {
				t.Errorf("missing = %v, want %d entries", s.Missing, tt.wantMissing)
			}
			for k, want := range tt.wantValues {
				if s.Values[k] != want {
					t.Errorf("%s = %d, want %d", k, s.Values[k], want)
				}
			}
			for _, c := range tt.rubric.Categories {
				if v := s.Values[c.Field]; v < 0 || v > c.Max {
					t.Errorf("%s = %d out of [0, %d]", c.Field, v, c.Max)
				}
			}
		})
	}
}

func TestRubricScoreExponentNumbers(t *testing.T) {
	res, err := NewParser(nil).Parse(`{"TechnicalKnowledge":4e1,"ProblemSolvingSkills":3e1,"CommunicationSkills":3.0e1,"feedBack":"ok"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := TechnicalFinal.Score(res)
	if s.Overall != 100 {
		t.Errorf("overall = %d, want 100 (values %v)", s.Overall, s.Values)
	}
	if len(s.Missing) != 0 {
		t.Errorf("missing = %v, want none", s.Missing)
	}
}

func TestFeedback(t *testing.T) {
	if got := HR.Score(Result{"feedBack": "Good answer"}).Feedback; got != "Good answer" {
		t.Errorf("expected feedBack to be used, got %q", got)
	}
	if got := HR.Score(Result{"feedback": "lowercase"}).Feedback; got != "lowercase" {
		t.Errorf("expected feedback fallback, got %q", got)
	}
	if got := HR.Score(Result{"feedBack": "  "}).Feedback; got != DefaultFeedback {
		t.Errorf("expected default feedback, got %q", got)
	}
}
