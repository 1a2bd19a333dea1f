// Package app wires the configured collaborators into a document.Service.
// It is shared by the HTTP server and the Lambda entrypoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/doc-classifier/internal/classify"
	"github.com/zombor/doc-classifier/internal/document"
	"github.com/zombor/doc-classifier/internal/scanning"
)

// EnvVarPrefix is prepended to every flag name when read from the environment
const EnvVarPrefix = "DOC_CLASSIFIER"

// Options holds every flag shared by the binaries
type Options struct {
	DBPath         *string
	StoragePath    *string
	StorageBackend *string
	S3Bucket       *string
	S3Prefix       *string

	AWSRegion    *string
	AWSAccessKey *string
	AWSSecretKey *string
	AWSEndpoint  *string

	OCR         *string
	GeminiKey   *string
	GeminiModel *string
	OllamaURL   *string
	OllamaModel *string
	OCRTimeout  *time.Duration

	Inference           *string
	SageMakerEndpoint   *string
	InferenceURL        *string
	EndpointContentType *string
	InferenceTimeout    *time.Duration

	RulesPath *string
}

// RegisterFlags adds the shared flags to fs
func RegisterFlags(fs *ff.FlagSet) *Options {
	return &Options{
		DBPath:         fs.StringLong("db", "doc-classifier.db", "Classification history database path"),
		StoragePath:    fs.StringLong("storage", "./images", "Local image archive directory (grows without limit; use s3 for long-lived deployments)"),
		StorageBackend: fs.StringLong("storage-backend", "local", "Image archive backend: 'local' or 's3'"),
		S3Bucket:       fs.StringLong("s3-bucket", "", "S3 bucket for the image archive"),
		S3Prefix:       fs.StringLong("s3-prefix", "classifications", "Key prefix inside the S3 bucket"),

		AWSRegion:    fs.StringLong("aws-region", "", "AWS region (defaults to the AWS credential chain)"),
		AWSAccessKey: fs.StringLong("aws-access-key", "", "AWS access key ID (optional)"),
		AWSSecretKey: fs.StringLong("aws-secret-key", "", "AWS secret access key (optional)"),
		AWSEndpoint:  fs.StringLong("aws-endpoint", "", "Override endpoint for Textract and S3 (e.g. LocalStack)"),

		OCR:         fs.StringLong("ocr", "textract", "OCR backend: 'textract', 'gemini' or 'ollama'"),
		GeminiKey:   fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		GeminiModel: fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		OllamaURL:   fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		OllamaModel: fs.StringLong("ollama-model", "llava", "Ollama vision model name"),
		OCRTimeout:  fs.DurationLong("ocr-timeout", 30*time.Second, "Timeout for one OCR call"),

		Inference:           fs.StringLong("inference", "sagemaker", "Inference backend: 'sagemaker' or 'http'"),
		SageMakerEndpoint:   fs.StringLong("sagemaker-endpoint", "", "SageMaker endpoint name"),
		InferenceURL:        fs.StringLong("inference-url", "", "URL of an HTTP inference server"),
		EndpointContentType: fs.StringLong("endpoint-content-type", "image/jpeg", "Content type sent to the classifier (empty sends the image's own type)"),
		InferenceTimeout:    fs.DurationLong("inference-timeout", 60*time.Second, "Timeout for one inference call"),

		RulesPath: fs.StringLong("rules", "", "YAML file with labels and keyword rules (defaults to the built-in table)"),
	}
}

// Components are the long-lived objects built from Options
type Components struct {
	Service  *document.Service
	DB       document.DB
	Detector scanning.TextDetector
}

// Close releases the database and OCR client
func (c *Components) Close() error {
	return errors.Join(c.Detector.Close(), c.DB.Close())
}

func (o *Options) awsConfig() scanning.AWSConfig {
	return scanning.AWSConfig{
		Region:    *o.AWSRegion,
		AccessKey: *o.AWSAccessKey,
		SecretKey: *o.AWSSecretKey,
		Endpoint:  *o.AWSEndpoint,
	}
}

// usesAWS reports whether any selected backend talks to AWS
func (o *Options) usesAWS() bool {
	return *o.OCR == "textract" || *o.Inference == "sagemaker" || *o.StorageBackend == "s3"
}

// Build constructs the service and its collaborators
func (o *Options) Build(ctx context.Context) (*Components, error) {
	config, err := classify.LoadConfig(*o.RulesPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded classification rules", "labels", config.Labels, "rules", len(config.Rules))

	var awsCfg aws.Config
	if o.usesAWS() {
		awsCfg, err = scanning.LoadAWSConfig(ctx, o.awsConfig())
		if err != nil {
			return nil, err
		}
	}

	detector, err := o.buildDetector(awsCfg)
	if err != nil {
		return nil, err
	}

	predictor, err := o.buildPredictor(awsCfg)
	if err != nil {
		detector.Close()
		return nil, err
	}

	slog.Info("Initializing database...", "path", *o.DBPath)
	db, err := document.NewBoltDB(*o.DBPath)
	if err != nil {
		detector.Close()
		return nil, err
	}

	store, err := o.buildStorage(awsCfg)
	if err != nil {
		detector.Close()
		db.Close()
		return nil, err
	}

	return &Components{
		Service:  document.NewService(detector, predictor, config, db, store),
		DB:       db,
		Detector: detector,
	}, nil
}

func (o *Options) buildDetector(awsCfg aws.Config) (scanning.TextDetector, error) {
	switch *o.OCR {
	case "textract":
		slog.Info("Initializing Textract OCR...", "region", awsCfg.Region)
		return scanning.NewTextract(awsCfg, *o.AWSEndpoint, *o.OCRTimeout), nil
	case "gemini":
		apiKey := *o.GeminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini OCR...", "model", *o.GeminiModel)
		return scanning.NewGemini(apiKey, *o.GeminiModel, *o.OCRTimeout)
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", *o.OllamaURL, "model", *o.OllamaModel)
		return scanning.NewOllama(*o.OllamaURL, *o.OllamaModel, *o.OCRTimeout)
	default:
		return nil, fmt.Errorf("invalid OCR backend %q: valid values are textract, gemini or ollama", *o.OCR)
	}
}

func (o *Options) buildPredictor(awsCfg aws.Config) (scanning.Predictor, error) {
	switch *o.Inference {
	case "sagemaker":
		slog.Info("Initializing SageMaker inference...", "endpoint", *o.SageMakerEndpoint)
		return scanning.NewSageMaker(awsCfg, *o.SageMakerEndpoint, *o.EndpointContentType, *o.InferenceTimeout)
	case "http":
		slog.Info("Initializing HTTP inference...", "url", *o.InferenceURL)
		return scanning.NewHTTPPredictor(*o.InferenceURL, *o.EndpointContentType, *o.InferenceTimeout)
	default:
		return nil, fmt.Errorf("invalid inference backend %q: valid values are sagemaker or http", *o.Inference)
	}
}

func (o *Options) buildStorage(awsCfg aws.Config) (document.Storage, error) {
	switch *o.StorageBackend {
	case "local":
		slog.Info("Initializing local image archive...", "path", *o.StoragePath)
		return document.NewLocalStorage(*o.StoragePath)
	case "s3":
		slog.Info("Initializing S3 image archive...", "bucket", *o.S3Bucket, "prefix", *o.S3Prefix)
		return document.NewS3Storage(awsCfg, *o.S3Bucket, *o.S3Prefix, *o.AWSEndpoint)
	default:
		return nil, fmt.Errorf("invalid storage backend %q: valid values are local or s3", *o.StorageBackend)
	}
}
