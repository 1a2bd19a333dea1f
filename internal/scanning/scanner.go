package scanning

import (
	"context"
	"strings"
)

// BlockTypeLine marks a block holding one line of detected text
const BlockTypeLine = "LINE"

// LineSeparator terminates every line in the joined OCR text
const LineSeparator = "|"

// Block is one unit of text returned by an OCR backend
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextDetector defines the interface for OCR backends
type TextDetector interface {
	// DetectText extracts text blocks from an image, in reading order
	DetectText(ctx context.Context, imageData []byte, contentType string) ([]Block, error)
	// Close releases any resources held by the detector
	Close() error
}

// Predictor defines the interface for image classifier endpoints
type Predictor interface {
	// Predict returns one probability per class, in the endpoint's label order
	Predict(ctx context.Context, imageData []byte, contentType string) ([]float64, error)
}

// JoinLines concatenates the LINE blocks, each followed by LineSeparator
func JoinLines(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type != BlockTypeLine {
			continue
		}
		sb.WriteString(b.Text)
		sb.WriteString(LineSeparator)
	}
	return sb.String()
}

// linesToBlocks wraps plain text lines as LINE blocks
func linesToBlocks(lines []string) []Block {
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		blocks = append(blocks, Block{Type: BlockTypeLine, Text: line})
	}
	return blocks
}
