package scanning

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

// sagemakerAPI is the subset of the SageMaker Runtime client used here
type sagemakerAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// SageMaker implements the Predictor interface with a SageMaker endpoint
type SageMaker struct {
	client       sagemakerAPI
	endpointName string
	// contentType overrides the payload MIME type sent to the endpoint
	contentType string
	timeout     time.Duration
}

// NewSageMaker creates a predictor for the named endpoint. An empty
// contentType sends the payload's own MIME type.
func NewSageMaker(awsCfg aws.Config, endpointName, contentType string, timeout time.Duration) (*SageMaker, error) {
	return newSageMakerWithClient(sagemakerruntime.NewFromConfig(awsCfg), endpointName, contentType, timeout)
}

func newSageMakerWithClient(client sagemakerAPI, endpointName, contentType string, timeout time.Duration) (*SageMaker, error) {
	if endpointName == "" {
		return nil, fmt.Errorf("sagemaker endpoint name is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SageMaker{
		client:       client,
		endpointName: endpointName,
		contentType:  contentType,
		timeout:      timeout,
	}, nil
}

// Predict invokes the endpoint with the raw image bytes
func (s *SageMaker) Predict(ctx context.Context, imageData []byte, contentType string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.contentType != "" {
		contentType = s.contentType
	}

	out, err := s.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(s.endpointName),
		ContentType:  aws.String(contentType),
		Accept:       aws.String("application/json"),
		Body:         imageData,
	})
	if err != nil {
		return nil, fmt.Errorf("sagemaker invoke endpoint %s: %w", s.endpointName, err)
	}

	probs, err := parseProbabilities(out.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing sagemaker response: %w", err)
	}
	return probs, nil
}
