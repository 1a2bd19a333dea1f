package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/doc-classifier/internal/classify"
	"github.com/zombor/doc-classifier/internal/scanning"
)

// IDGenerator generates unique IDs for classification records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the classification pipeline and manages its history
type Service struct {
	detector    scanning.TextDetector
	predictor   scanning.Predictor
	config      classify.Config
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(detector scanning.TextDetector, predictor scanning.Predictor, config classify.Config, db DB, storage Storage) *Service {
	return NewServiceWithDeps(detector, predictor, config, db, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(detector scanning.TextDetector, predictor scanning.Predictor, config classify.Config, db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		detector:    detector,
		predictor:   predictor,
		config:      config,
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// decodeImage turns the request payload into image bytes ready for the backends.
// Only a missing or non-base64 payload is a malformed request.
func decodeImage(imageBase64 string) ([]byte, string, error) {
	imageBase64 = strings.TrimSpace(imageBase64)
	if imageBase64 == "" {
		return nil, "", &MalformedRequestError{Reason: "missing Image field"}
	}

	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, "", &MalformedRequestError{Reason: "Image is not valid base64", Err: err}
	}

	data, contentType, _, err := scanning.PrepareImage(raw)
	if err != nil {
		// The backends decide whether they can read the original bytes.
		contentType = scanning.DetectContentType(raw)
		slog.Warn("Image conversion failed, sending original bytes", "content_type", contentType, "error", err)
		return raw, contentType, nil
	}
	return data, contentType, nil
}

// Classify detects text, applies the keyword rules, runs the image classifier
// and merges both into a result. The reported duration covers OCR through merge.
func (s *Service) Classify(ctx context.Context, imageBase64 string) (*Classification, error) {
	data, contentType, err := decodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	start := s.timeSource.Now()

	blocks, err := s.detector.DetectText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to detect text",
			"content_type", contentType,
			"image_size", len(data),
			"error", err,
		)
		return nil, &CollaboratorFailure{Collaborator: "ocr", Err: err}
	}

	text := scanning.JoinLines(blocks)
	documentType := classify.ClassifyByKeywords(text, s.config.Rules)

	probs, err := s.predictor.Predict(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to run inference",
			"content_type", contentType,
			"image_size", len(data),
			"error", err,
		)
		return nil, &CollaboratorFailure{Collaborator: "inference", Err: err}
	}

	result, err := classify.Merge(probs, s.config.Labels, documentType, text, s.timeSource.Now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("merging classification: %w", err)
	}

	record := &Classification{
		ID:          s.idGenerator.Generate(),
		Result:      result,
		ContentType: contentType,
		CreatedAt:   start,
	}
	s.archive(ctx, record, data)

	slog.Info("Classified document",
		"id", record.ID,
		"document_type", result.DocumentType,
		"document_classification", result.DocumentClassification,
		"confidence", result.ClassificationConfidence,
		"duration", result.Duration,
	)

	return record, nil
}

// archive stores the image and the record. The result is already complete,
// so failures are logged and never fail the request.
func (s *Service) archive(ctx context.Context, record *Classification, data []byte) {
	filename := record.ID + extensionFor(record.ContentType)
	savedPath, err := s.storage.Save(ctx, filename, data)
	if err != nil {
		slog.Warn("Failed to archive image", "id", record.ID, "error", err)
	} else {
		record.ImageFile = savedPath
	}

	if err := s.db.SaveClassification(record); err != nil {
		slog.Warn("Failed to save classification", "id", record.ID, "error", err)
		if record.ImageFile != "" {
			if delErr := s.storage.Delete(ctx, record.ImageFile); delErr != nil {
				slog.Warn("Failed to delete archived image", "file", record.ImageFile, "error", delErr)
			}
			record.ImageFile = ""
		}
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

// GetClassification retrieves a classification by ID
func (s *Service) GetClassification(id string) (*Classification, error) {
	record, err := s.db.GetClassification(id)
	if err != nil {
		return nil, fmt.Errorf("getting classification: %w", err)
	}
	return record, nil
}

// ListClassifications returns all classifications, newest first
func (s *Service) ListClassifications() ([]*Classification, error) {
	records, err := s.db.ListClassifications()
	if err != nil {
		return nil, fmt.Errorf("listing classifications: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// DeleteClassification removes a classification and its archived image
func (s *Service) DeleteClassification(ctx context.Context, id string) error {
	record, err := s.db.GetClassification(id)
	if err != nil {
		return fmt.Errorf("getting classification for deletion: %w", err)
	}

	if record.ImageFile != "" {
		if err := s.storage.Delete(ctx, record.ImageFile); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete image", "file", record.ImageFile, "error", err)
		}
	}

	if err := s.db.DeleteClassification(id); err != nil {
		return fmt.Errorf("deleting classification from database: %w", err)
	}
	return nil
}

// GetClassificationImage retrieves the archived image for a classification
func (s *Service) GetClassificationImage(ctx context.Context, id string) ([]byte, string, error) {
	record, err := s.db.GetClassification(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting classification: %w", err)
	}
	if record.ImageFile == "" {
		return nil, "", fmt.Errorf("classification %s has no archived image: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(ctx, record.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting classification image: %w", err)
	}

	return data, record.ContentType, nil
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
