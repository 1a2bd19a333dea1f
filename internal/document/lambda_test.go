package document

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/doc-classifier/internal/classify"
)

var _ = Describe("LambdaHandler", func() {
	var (
		detector  *mockDetector
		predictor *mockPredictor
		handler   *LambdaHandler
		req       events.APIGatewayProxyRequest
		resp      events.APIGatewayProxyResponse
		err       error
	)

	BeforeEach(func() {
		detector = newMockDetector()
		predictor = newMockPredictor()
		service := NewServiceWithDeps(detector, predictor, classify.DefaultConfig(), newMockDB(), newMockStorage(),
			&mockIDGenerator{id: "test-id-123"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), step: 500 * time.Millisecond})
		handler = NewLambdaHandler(service)

		body, marshalErr := json.Marshal(ClassifyRequest{Image: pngBase64()})
		Expect(marshalErr).NotTo(HaveOccurred())
		req = events.APIGatewayProxyRequest{Body: string(body)}
	})

	JustBeforeEach(func() {
		resp, err = handler.Handle(context.Background(), req)
	})

	When("the request is valid", func() {
		It("returns status 200 with the result", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result classify.Result
			Expect(json.Unmarshal([]byte(resp.Body), &result)).To(Succeed())
			Expect(result.DocumentType).To(Equal("KTP"))
			Expect(result.DocumentClassification).To(Equal("KTP"))
			Expect(result.ClassificationConfidence).To(Equal("0.8"))
			Expect(result.Duration).To(Equal(0.5))
		})
	})

	When("API Gateway base64-encodes the body", func() {
		BeforeEach(func() {
			req.Body = base64.StdEncoding.EncodeToString([]byte(req.Body))
			req.IsBase64Encoded = true
		})

		It("decodes it first", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	When("the body has no Image", func() {
		BeforeEach(func() {
			req.Body = `{}`
		})

		It("returns status 400", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(resp.Body).To(ContainSubstring("missing Image field"))
		})
	})

	When("inference fails", func() {
		BeforeEach(func() {
			predictor.predictErr = errors.New("endpoint not found")
		})

		It("returns status 502", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})
})
