package document

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxRequestSize bounds the JSON body; base64 inflates images by a third
const maxRequestSize = int64(50 << 20) // 50MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes v as a JSON body with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// StatusForError maps a classification error to an HTTP status code.
// Shape errors and anything unexpected are server errors.
func StatusForError(err error) int {
	var malformed *MalformedRequestError
	var collaborator *CollaboratorFailure
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &collaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClassify classifies a base64 encoded document image
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		slog.Error("Error reading request body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "Image is too large. Maximum request size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	image, err := ParseClassifyRequest(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.service.Classify(r.Context(), image)
	if err != nil {
		slog.Error("Error classifying document", "error", err)
		writeError(w, err.Error(), StatusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, record.Result)
}

// handleListClassifications returns all stored classifications
func (s *Server) handleListClassifications(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListClassifications()
	if err != nil {
		slog.Error("Error listing classifications", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if records == nil {
		records = []*Classification{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetClassification returns a single classification
func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.service.GetClassification(id)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, "Classification not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting classification", "id", id, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetClassificationImage returns the archived image
func (s *Server) handleGetClassificationImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := s.service.GetClassificationImage(r.Context(), id)
	if err != nil {
		slog.Warn("Error getting classification image", "id", id, "error", err)
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteClassification deletes a classification
func (s *Server) handleDeleteClassification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteClassification(r.Context(), id); err != nil {
		if IsNotFound(err) {
			writeError(w, "Classification not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting classification", "id", id, "error", err)
		writeError(w, "Error deleting classification", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
