package evaluation

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultFeedback is used when the oracle omits feedback text.
const DefaultFeedback = "No feedback provided"

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// ExtractAndCap coerces an oracle score field to an integer in [0, max].
// Strings shaped like "37/40" contribute their numerator. Anything that does
// not start with a number counts as 0.
func ExtractAndCap(v any, max int) int {
	f, _ := extract(v)
	return clamp(f, max)
}

func extract(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
		return extract(x.String())
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if i := strings.Index(s, "/"); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		// Out-of-range literals parse to ±Inf with ErrRange and clamp later.
		// Spelled-out NaN and Inf do not count as numbers.
		f, err := strconv.ParseFloat(s, 64)
		if (err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)) || errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		m := leadingInt.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(m, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// clamp bounds f to [0, max] before truncating, so out-of-range floats never
// reach the int conversion.
func clamp(f float64, max int) int {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= float64(max):
		return max
	}
	return int(math.Trunc(f))
}

// Category is one named, capped sub-score.
type Category struct {
	Field string
	Max   int
}

// Rubric lists the categories of one evaluation kind and the cap on their sum.
type Rubric struct {
	Categories []Category
	OverallCap int
}

var (
	GroupDiscussion = Rubric{
		Categories: []Category{
			{"Relevance", 10}, {"Clarity", 10}, {"Depth", 10}, {"Confidence", 10}, {"Grammar", 10},
		},
		OverallCap: 50,
	}
	TechnicalQuestion = Rubric{
		Categories: []Category{{"responseScore", 100}},
		OverallCap: 100,
	}
	TechnicalFinal = Rubric{
		Categories: []Category{
			{"TechnicalKnowledge", 40}, {"ProblemSolvingSkills", 30}, {"CommunicationSkills", 30},
		},
		OverallCap: 100,
	}
	// HR is shared by per-question and final evaluations.
	HR = Rubric{
		Categories: []Category{
			{"CommunicationSkills", 40}, {"PersonalityFit", 30}, {"Relevance", 30},
		},
		OverallCap: 100,
	}
)

// Scores is an aggregated evaluation.
type Scores struct {
	Values   map[string]int
	Overall  int
	Feedback string
	// Missing names categories that were absent or unparsable and scored 0.
	Missing []string
}

// Score applies the rubric to a parsed result. The overall score is the sum
// of the capped categories, capped again at OverallCap.
func (r Rubric) Score(res Result) Scores {
	s := Scores{Values: make(map[string]int, len(r.Categories))}
	sum := 0
	for _, c := range r.Categories {
		f, ok := extract(res[c.Field])
		if !ok {
			s.Missing = append(s.Missing, c.Field)
		}
		v := clamp(f, c.Max)
		s.Values[c.Field] = v
		sum += v
	}
	s.Overall = min(sum, r.OverallCap)
	s.Feedback = feedback(res)
	return s
}

func feedback(res Result) string {
	for _, key := range []string{"feedBack", "feedback", "Feedback"} {
		if s, ok := res[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return DefaultFeedback
}
