package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/doc-classifier/internal/classify"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		detector    *mockDetector
		predictor   *mockPredictor
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service := NewServiceWithDeps(detector, predictor, classify.DefaultConfig(), db, storage,
			&mockIDGenerator{id: "test-id-123"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), step: time.Second})
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(".*"), server.ServeHTTP)
		}
	}

	postClassify := func(body string) *http.Response {
		resp, err := http.Post(ghttpServer.URL()+"/classify", "application/json", bytes.NewBufferString(body))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decodeBody := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		detector = newMockDetector()
		predictor = newMockPredictor()
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleClassify", func() {
		When("the request is valid", func() {
			It("returns status OK with the result body", func() {
				body, err := json.Marshal(ClassifyRequest{Image: pngBase64()})
				Expect(err).NotTo(HaveOccurred())
				resp := postClassify(string(body))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var result map[string]any
				decodeBody(resp, &result)
				Expect(result).To(Equal(map[string]any{
					"document_type":             "KTP",
					"document_classification":   "KTP",
					"classification_confidence": "0.8",
					"detected_text":             "NIK: 123|AGAMA: ISLAM|KEWARGANEGARAAN: WNI|DARAH: O|",
					"duration":                  1.0,
				}))
			})

			It("is also served under /api/classify", func() {
				body, err := json.Marshal(ClassifyRequest{Image: pngBase64()})
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.Post(ghttpServer.URL()+"/api/classify", "application/json", bytes.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("the Image field is missing", func() {
			It("returns status Bad Request", func() {
				resp := postClassify(`{"image_url": "x"}`)
				var body map[string]string
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				decodeBody(resp, &body)
				Expect(body["error"]).To(ContainSubstring("missing Image field"))
			})
		})

		When("the body is not JSON", func() {
			It("returns status Bad Request", func() {
				resp := postClassify(`nope`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the Image is not base64", func() {
			It("returns status Bad Request without calling collaborators", func() {
				resp := postClassify(`{"Image": "%%%"}`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(detector.calls).To(BeZero())
			})
		})

		When("the OCR backend fails", func() {
			BeforeEach(func() {
				detector.detectErr = errors.New("throttled")
			})

			It("returns status Bad Gateway", func() {
				body, _ := json.Marshal(ClassifyRequest{Image: pngBase64()})
				resp := postClassify(string(body))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})

		When("the OCR backend cannot read the payload", func() {
			BeforeEach(func() {
				detector.detectErr = errors.New("unsupported document format")
			})

			It("returns status Bad Gateway after calling the backend", func() {
				body, _ := json.Marshal(ClassifyRequest{Image: base64.StdEncoding.EncodeToString([]byte("hello"))})
				resp := postClassify(string(body))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(detector.calls).To(Equal(1))
			})
		})

		When("the model output does not match the labels", func() {
			BeforeEach(func() {
				predictor.probs = []float64{1}
			})

			It("returns status Internal Server Error", func() {
				body, _ := json.Marshal(ClassifyRequest{Image: pngBase64()})
				resp := postClassify(string(body))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleListClassifications", func() {
		When("records exist", func() {
			BeforeEach(func() {
				db.records["id1"] = &Classification{ID: "id1"}
				db.records["id2"] = &Classification{ID: "id2"}
			})

			It("returns all records", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/classifications")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var records []*Classification
				decodeBody(resp, &records)
				Expect(records).To(HaveLen(2))
			})
		})

		When("no records exist", func() {
			It("returns an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/classifications")
				Expect(err).NotTo(HaveOccurred())
				var records []*Classification
				decodeBody(resp, &records)
				Expect(records).NotTo(BeNil())
				Expect(records).To(BeEmpty())
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db error")
			})

			It("returns status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/classifications")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetClassification", func() {
		BeforeEach(func() {
			db.records["id1"] = &Classification{ID: "id1", Result: classify.Result{DocumentType: "SIM"}}
		})

		It("returns the record", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/classifications/id1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var record Classification
			decodeBody(resp, &record)
			Expect(record.DocumentType).To(Equal("SIM"))
		})

		It("returns status Not Found for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/classifications/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetClassificationImage", func() {
		BeforeEach(func() {
			db.records["id1"] = &Classification{ID: "id1", ImageFile: "id1.png", ContentType: "image/png"}
			storage.files["id1.png"] = []byte("png-bytes")
		})

		It("returns the image with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/classifications/id1/image")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png-bytes")))
		})
	})

	Describe("handleDeleteClassification", func() {
		BeforeEach(func() {
			db.records["id1"] = &Classification{ID: "id1"}
		})

		It("returns status No Content", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/classifications/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.records).NotTo(HaveKey("id1"))
		})

		It("returns status Not Found for unknown IDs", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/classifications/missing", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/classify", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer()
		})

		It("rejects requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/classifications")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/classifications", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("leaves the health check open", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
