package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPredictor implements the Predictor interface against any inference
// server that accepts a raw image POST and answers with a JSON probability array
type HTTPPredictor struct {
	url         string
	contentType string
	client      *http.Client
}

// NewHTTPPredictor creates a predictor posting to url
func NewHTTPPredictor(url, contentType string, timeout time.Duration) (*HTTPPredictor, error) {
	if url == "" {
		return nil, fmt.Errorf("inference url is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPPredictor{
		url:         url,
		contentType: contentType,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Predict posts the image and decodes the probability vector
func (h *HTTPPredictor) Predict(ctx context.Context, imageData []byte, contentType string) ([]float64, error) {
	if h.contentType != "" {
		contentType = h.contentType
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	probs, err := parseProbabilities(body)
	if err != nil {
		return nil, fmt.Errorf("parsing inference response: %w", err)
	}
	return probs, nil
}
