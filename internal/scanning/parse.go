package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// textLines is the JSON document the vision models are asked to return
type textLines struct {
	Lines []string `json:"lines"`
}

// parseLinesJSON parses the JSON text-line response from a vision model
func parseLinesJSON(text string) ([]Block, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var data textLines
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return linesToBlocks(data.Lines), nil
}

// parseProbabilities decodes an inference response body. Endpoints either
// return a bare JSON array or a {"predictions": [[...]]} envelope.
func parseProbabilities(body []byte) ([]float64, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty inference response")
	}

	var probs []float64
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &probs); err != nil {
			return nil, fmt.Errorf("unmarshaling probabilities: %w", err)
		}
	case '{':
		var envelope struct {
			Predictions [][]float64 `json:"predictions"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("unmarshaling predictions: %w", err)
		}
		if len(envelope.Predictions) == 0 {
			return nil, fmt.Errorf("no predictions in inference response")
		}
		probs = envelope.Predictions[0]
	default:
		return nil, fmt.Errorf("unexpected inference response: %q", truncate(string(body), 64))
	}

	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("probability %d out of range: %v", i, p)
		}
	}
	return probs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
