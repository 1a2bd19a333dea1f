package document

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler serves the classify endpoint behind API Gateway
type LambdaHandler struct {
	service *Service
}

// NewLambdaHandler creates a LambdaHandler
func NewLambdaHandler(service *Service) *LambdaHandler {
	return &LambdaHandler{service: service}
}

// Handle classifies the image in an API Gateway proxy request
func (h *LambdaHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return lambdaError("malformed request: body is not valid base64", http.StatusBadRequest), nil
		}
		body = decoded
	}

	image, err := ParseClassifyRequest(body)
	if err != nil {
		return lambdaError(err.Error(), http.StatusBadRequest), nil
	}

	record, err := h.service.Classify(ctx, image)
	if err != nil {
		slog.Error("Error classifying document", "error", err)
		return lambdaError(err.Error(), StatusForError(err)), nil
	}

	return lambdaJSON(http.StatusOK, record.Result), nil
}

func lambdaJSON(code int, v any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Error encoding response", "error", err)
		return lambdaError("Internal server error", http.StatusInternalServerError)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func lambdaError(message string, code int) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
