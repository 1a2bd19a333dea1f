package classify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unknown is the document type reported when no keyword rule matches
const Unknown = "UNKNOWN"

// Rule maps a document type to the keywords that must all appear in the text
type Rule struct {
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// RuleSet is evaluated in order, most specific rule first
type RuleSet []Rule

// Labels names the model classes, index-aligned with its probability output
type Labels []string

// Result is the outcome of one classification request
type Result struct {
	DocumentType             string  `json:"document_type"`
	DocumentClassification   string  `json:"document_classification"`
	ClassificationConfidence string  `json:"classification_confidence"`
	DetectedText             string  `json:"detected_text"`
	Duration                 float64 `json:"duration"` // seconds
}

// InputShapeError reports a probability vector that cannot be aligned with the labels
type InputShapeError struct {
	Probabilities int
	Labels        int
}

func (e *InputShapeError) Error() string {
	if e.Probabilities == 0 {
		return "empty probability vector"
	}
	return fmt.Sprintf("probability vector has %d entries, expected %d labels", e.Probabilities, e.Labels)
}

// ClassifyByKeywords returns the label of the first rule whose keywords all
// occur in text, or Unknown. Matching is case-insensitive and substring based.
func ClassifyByKeywords(text string, rules RuleSet) string {
	if text == "" {
		return Unknown
	}
	lower := strings.ToLower(text)
	for _, rule := range rules {
		if rule.matches(lower) {
			return rule.Label
		}
	}
	return Unknown
}

func (r Rule) matches(lower string) bool {
	if len(r.Keywords) == 0 {
		return false
	}
	for _, kw := range r.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// Argmax returns the lowest index holding the maximum value.
// It returns -1 for an empty slice.
func Argmax(probs []float64) int {
	if len(probs) == 0 {
		return -1
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}

// FormatConfidence renders a probability as the shortest decimal string that
// parses back to the same value
func FormatConfidence(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Merge combines the model output with the heuristic result
func Merge(probs []float64, labels Labels, heuristicType, text string, elapsed time.Duration) (Result, error) {
	if len(probs) == 0 || len(probs) != len(labels) {
		return Result{}, &InputShapeError{Probabilities: len(probs), Labels: len(labels)}
	}

	best := Argmax(probs)
	return Result{
		DocumentType:             heuristicType,
		DocumentClassification:   labels[best],
		ClassificationConfidence: FormatConfidence(probs[best]),
		DetectedText:             text,
		Duration:                 elapsed.Seconds(),
	}, nil
}
