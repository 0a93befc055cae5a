package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kmorozova/mealscan/internal/common"
	"github.com/kmorozova/mealscan/internal/config"
	"github.com/kmorozova/mealscan/internal/vision"
	"github.com/kmorozova/mealscan/testdata"
)

// fakeAnalyzer records what it was called with and returns a canned reply.
type fakeAnalyzer struct {
	lastPrompt      string
	lastContentType string
	lastImageSize   int
	reply           json.RawMessage
	err             error
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, prompt string, imageData []byte, contentType string) (*vision.Result, error) {
	f.lastPrompt = prompt
	f.lastContentType = contentType
	f.lastImageSize = len(imageData)
	if f.err != nil {
		return nil, f.err
	}
	return &vision.Result{
		JSON:             f.reply,
		Model:            "gpt-4o-test",
		TokensUsed:       123,
		ProcessingTimeMs: 5,
	}, nil
}

func testHandlers(fake *fakeAnalyzer) *Handlers {
	return &Handlers{
		Vision: fake,
		Config: config.Config{
			JWTSecret:      "test-secret",
			JWTIssuer:      "mealscan-test",
			OpenAIAPIKey:   "sk-test",
			MaxUploadBytes: 10 << 20,
		},
	}
}

func testRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	h.Routers(r)
	return r
}

func multipartImage(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func postScan(t *testing.T, router http.Handler, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartImage(t, "image", filename, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestScan_RelaysModelJSON(t *testing.T) {
	fake := &fakeAnalyzer{reply: json.RawMessage(`{"dishes":[{"name":"pelmeni","calories":420}]}`)}
	router := testRouter(testHandlers(fake))

	rr := postScan(t, router, "/analyze", "dinner.jpg", testdata.CreateTestMealImage())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	dishes, ok := doc["dishes"].([]any)
	if !ok || len(dishes) != 1 {
		t.Fatalf("expected relayed dishes array, got %v", doc)
	}

	if fake.lastContentType != "image/jpeg" {
		t.Fatalf("expected sniffed image/jpeg, got %q", fake.lastContentType)
	}
	if fake.lastImageSize == 0 {
		t.Fatalf("expected image bytes to reach the analyzer")
	}
}

func TestScan_AnalyzeAndMenuShareOnePrompt(t *testing.T) {
	fake := &fakeAnalyzer{reply: json.RawMessage(`{"dishes":[]}`)}
	router := testRouter(testHandlers(fake))

	img := testdata.CreateTestMenuImage()

	rr := postScan(t, router, "/analyze", "photo.png", img)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d", rr.Code)
	}
	analyzePrompt := fake.lastPrompt

	rr = postScan(t, router, "/menu", "menu.png", img)
	if rr.Code != http.StatusOK {
		t.Fatalf("menu: expected 200, got %d", rr.Code)
	}
	if fake.lastPrompt != analyzePrompt {
		t.Fatalf("expected /menu to use the /analyze prompt")
	}

	rr = postScan(t, router, "/recommend", "menu.png", img)
	if rr.Code != http.StatusOK {
		t.Fatalf("recommend: expected 200, got %d", rr.Code)
	}
	if fake.lastPrompt == analyzePrompt {
		t.Fatalf("expected /recommend to use a different prompt")
	}
	if fake.lastPrompt != vision.RecommendPrompt {
		t.Fatalf("expected /recommend to use the recommendation prompt")
	}
}

func TestScan_MissingFileIsBadRequest(t *testing.T) {
	fake := &fakeAnalyzer{reply: json.RawMessage(`{}`)}
	router := testRouter(testHandlers(fake))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "no image here")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestScan_NonImageUploadIsBadRequest(t *testing.T) {
	fake := &fakeAnalyzer{reply: json.RawMessage(`{}`)}
	router := testRouter(testHandlers(fake))

	rr := postScan(t, router, "/menu", "menu.txt", []byte("soup ... 4.50\nsalad ... 3.00"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if resp["error"] != "validation failed" {
		t.Fatalf("expected validation error, got %v", resp)
	}
}

func TestScan_UpstreamFailureIsBadGateway(t *testing.T) {
	fake := &fakeAnalyzer{err: fmt.Errorf("%w: boom", common.ErrUpstream)}
	router := testRouter(testHandlers(fake))

	rr := postScan(t, router, "/recommend", "dinner.jpg", testdata.CreateTestMealImage())

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected generic error message, got %v", resp)
	}
}

func TestScan_OversizedUploadIsBadRequest(t *testing.T) {
	fake := &fakeAnalyzer{reply: json.RawMessage(`{}`)}
	h := testHandlers(fake)
	h.Config.MaxUploadBytes = 1024
	router := testRouter(h)

	rr := postScan(t, router, "/analyze", "big.jpg", testdata.CreateTestMealImage())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHealth_AlwaysHealthy(t *testing.T) {
	router := testRouter(testHandlers(&fakeAnalyzer{}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("health body is not JSON: %v", err)
	}
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", status.Status)
	}
}

func TestReady_ReportsVisionCheck(t *testing.T) {
	h := testHandlers(&fakeAnalyzer{})
	h.Config.OpenAIAPIKey = ""
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without API key, got %d", rr.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("ready body is not JSON: %v", err)
	}
	if status.Checks["vision"].Status != StatusUnhealthy {
		t.Fatalf("expected vision check to fail, got %+v", status.Checks)
	}
}
