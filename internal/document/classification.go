package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/doc-classifier/internal/classify"
)

// ErrNotFound is returned when a classification record does not exist
var ErrNotFound = errors.New("classification not found")

// Classification is a stored classification result with its source image
type Classification struct {
	ID string `json:"id"`
	classify.Result
	ImageFile   string    `json:"image_file,omitempty"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClassifyRequest is the body accepted by the classify endpoint
type ClassifyRequest struct {
	Image string `json:"Image"`
}

// MalformedRequestError rejects a request before any collaborator is called
type MalformedRequestError struct {
	Reason string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed request: %s: %v", e.Reason, e.Err)
	}
	return "malformed request: " + e.Reason
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// CollaboratorFailure wraps an error returned by the OCR or inference backend
type CollaboratorFailure struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error { return e.Err }

// ParseClassifyRequest decodes a classify request body and returns the base64 image
func ParseClassifyRequest(body []byte) (string, error) {
	var req ClassifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", &MalformedRequestError{Reason: "invalid JSON body", Err: err}
	}
	if strings.TrimSpace(req.Image) == "" {
		return "", &MalformedRequestError{Reason: "missing Image field"}
	}
	return req.Image, nil
}
