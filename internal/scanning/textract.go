package scanning

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// textractAPI is the subset of the Textract client used here
type textractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Textract implements the TextDetector interface using Amazon Textract
type Textract struct {
	client  textractAPI
	timeout time.Duration
}

// NewTextract creates a Textract detector from a loaded AWS config
func NewTextract(awsCfg aws.Config, endpoint string, timeout time.Duration) *Textract {
	var opts []func(*textract.Options)
	if endpoint != "" {
		opts = append(opts, func(o *textract.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return newTextractWithClient(textract.NewFromConfig(awsCfg, opts...), timeout)
}

func newTextractWithClient(client textractAPI, timeout time.Duration) *Textract {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Textract{client: client, timeout: timeout}
}

// DetectText runs synchronous text detection on a single-page image
func (t *Textract) DetectText(ctx context.Context, imageData []byte, contentType string) ([]Block, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: imageData},
	})
	if err != nil {
		return nil, fmt.Errorf("textract detect document text: %w", err)
	}

	blocks := make([]Block, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		blocks = append(blocks, Block{
			Type: string(b.BlockType),
			Text: aws.ToString(b.Text),
		})
	}
	return blocks, nil
}

// Close is a no-op; the SDK client holds no resources
func (t *Textract) Close() error {
	return nil
}
