// Package evaluation turns raw oracle replies into capped, aggregated scores.
package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Extractor locates the JSON object inside free-form oracle text.
type Extractor interface {
	Extract(raw string) (string, bool)
}

// BraceExtractor takes everything from the first '{' to the last '}'.
// Leading and trailing prose around the payload is ignored.
type BraceExtractor struct{}

// Extract implements Extractor.
func (BraceExtractor) Extract(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// Result is a decoded evaluation object. Numbers are kept as json.Number so
// ExtractAndCap sees exactly what the oracle wrote.
type Result map[string]any

// ParseError reports an oracle reply that held no decodable JSON object.
// Raw is kept for logging and must not be sent to clients.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable evaluation: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return model.ErrUnparsableEvaluation
}

// Parser decodes oracle replies.
type Parser struct {
	extractor Extractor
}

// NewParser returns a Parser using ex, or BraceExtractor when ex is nil.
func NewParser(ex Extractor) *Parser {
	if ex == nil {
		ex = BraceExtractor{}
	}
	return &Parser{extractor: ex}
}

// Parse extracts and decodes the JSON object embedded in raw.
func (p *Parser) Parse(raw string) (Result, error) {
	payload, ok := p.extractor.Extract(raw)
	if !ok {
		return nil, &ParseError{Raw: raw, Reason: "no JSON object found"}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var res Result
	if err := dec.Decode(&res); err != nil {
		return nil, &ParseError{Raw: raw, Reason: err.Error()}
	}
	if dec.More() {
		return nil, &ParseError{Raw: raw, Reason: "trailing data after JSON object"}
	}
	return res, nil
}
