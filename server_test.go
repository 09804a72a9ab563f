package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"spendocr/pkg/auth"
	"spendocr/pkg/config"
	"spendocr/pkg/ocr"
	"spendocr/pkg/parsers"
)

// stubRecognizer returns the same lines for every variant.
type stubRecognizer struct{ lines []parsers.Line }

func (stubRecognizer) Name() string { return "stub" }

func (s stubRecognizer) Recognize(context.Context, image.Image) ([]parsers.Line, error) {
	return s.lines, nil
}

func conf(v float64) *float64 { return &v }

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg = config.FromEnv()
	cfg.SaveUploads = false
	jwtSecret = []byte(secret)
	expenses = nil
	pipeline = ocr.NewPipeline(ocr.PipelineConfig{Local: stubRecognizer{lines: []parsers.Line{
		{Text: "스타벅스", Confidence: conf(0.9)},
		{Text: "2024-01-15 09:30:00", Confidence: conf(0.9)},
		{Text: "아메리카노 4,500원", Confidence: conf(0.9)},
	}}})
	r := gin.New()
	setupRoutes(r)
	return r
}

func multipartImage(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	w.Close()
	return body, w.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(80, 40, color.NRGBA{255, 255, 255, 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	r := setupTestServer(t, "")
	resp := performRequest(r, http.MethodGet, "/health", nil, "", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Fatalf("health status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestOCRUploadValidation(t *testing.T) {
	r := setupTestServer(t, "")

	body, ct := multipartImage(t, "other", "a.png", pngBytes(t))
	resp := performRequest(r, http.MethodPost, "/api/ocr", body, "", ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status=%d", resp.Code)
	}

	body, ct = multipartImage(t, "file", "a.png", []byte("definitely not an image"))
	resp = performRequest(r, http.MethodPost, "/api/ocr", body, "", ct)
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "invalid image") {
		t.Fatalf("bad image: status=%d body=%s", resp.Code, resp.Body.String())
	}

	cfg.MaxUploadBytes = 10
	body, ct = multipartImage(t, "file", "a.png", pngBytes(t))
	resp = performRequest(r, http.MethodPost, "/api/ocr", body, "", ct)
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "too large") {
		t.Fatalf("oversized: status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestOCRUploadReturnsPayload(t *testing.T) {
	r := setupTestServer(t, "")
	body, ct := multipartImage(t, "file", "receipt.png", pngBytes(t))
	resp := performRequest(r, http.MethodPost, "/api/ocr", body, "", ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var got ocrResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "" {
		t.Fatalf("no store configured, id should be empty: %q", got.ID)
	}
	if got.Parsed.Amount == nil || *got.Parsed.Amount != 4500 || got.Debug == nil || got.Debug.Engine != "stub" {
		t.Fatalf("payload %+v", got.Payload)
	}
	if got.Debug.Variant != ocr.VariantOriginal || len(got.Debug.Variants) != 3 {
		t.Fatalf("debug %+v", got.Debug)
	}
}

func TestParseEndpoint(t *testing.T) {
	r := setupTestServer(t, "")
	req := `{"lines":[{"text":"스타벅스"},{"text":"2024-01-15 09:30:00"},{"text":"아메리카노 4,500원","confidence":0.9,"bbox":[[0,0],[10,0],[10,10],[0,10]]}]}`
	resp := performRequest(r, http.MethodPost, "/api/parse", strings.NewReader(req), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var got ocrResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got.Parsed.Merchant != "스타벅스" || *got.Parsed.Timestamp != "2024-01-15 09:30:00" {
		t.Fatalf("parsed %+v", got.Parsed)
	}
	if got.RawText != "스타벅스\n2024-01-15 09:30:00\n아메리카노 4,500원" {
		t.Fatalf("raw %q", got.RawText)
	}

	resp = performRequest(r, http.MethodPost, "/api/parse", strings.NewReader("{"), "", "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status=%d", resp.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	r := setupTestServer(t, "test-secret")
	req := `{"lines":[]}`
	resp := performRequest(r, http.MethodPost, "/api/parse", strings.NewReader(req), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	tok, err := auth.Sign([]byte("test-secret"), "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	resp = performRequest(r, http.MethodPost, "/api/parse", strings.NewReader(req), tok, "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"lines":[]`) {
		t.Fatalf("empty input must yield empty lines: %s", resp.Body.String())
	}
	// health stays public
	if resp := performRequest(r, http.MethodGet, "/health", nil, "", ""); resp.Code != http.StatusOK {
		t.Fatalf("health status=%d", resp.Code)
	}
}

func TestExpensesWithoutStore(t *testing.T) {
	r := setupTestServer(t, "")
	if resp := performRequest(r, http.MethodGet, "/api/expenses", nil, "", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", resp.Code)
	}
}

// TestPersistedFlow needs postgres: set DB_DSN_TEST=1 and DB_DSN.
func TestPersistedFlow(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	r := setupTestServer(t, "test-secret")
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.DBAutoMigrate = true
	cfg.SaveUploads = true
	cfg.UploadBase = t.TempDir()
	if err := initDB(); err != nil {
		t.Fatalf("initDB: %v", err)
	}
	owner := "flow-" + time.Now().Format("150405.000000")
	tok, _ := auth.Sign(jwtSecret, owner, time.Hour)

	body, ct := multipartImage(t, "file", "receipt.png", pngBytes(t))
	resp := performRequest(r, http.MethodPost, "/api/ocr", body, tok, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("ocr status=%d body=%s", resp.Code, resp.Body.String())
	}
	var created ocrResponse
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatalf("expected stored id")
	}

	resp = performRequest(r, http.MethodGet, "/api/expenses/"+created.ID, nil, tok, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", resp.Code, resp.Body.String())
	}
	var view expenseView
	json.Unmarshal(resp.Body.Bytes(), &view)
	if view.Amount == nil || *view.Amount != 4500 || len(view.Payload) == 0 {
		t.Fatalf("view %+v", view)
	}

	other, _ := auth.Sign(jwtSecret, owner+"-other", time.Hour)
	if resp := performRequest(r, http.MethodGet, "/api/expenses/"+created.ID, nil, other, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("other owner status=%d", resp.Code)
	}

	resp = performRequest(r, http.MethodGet, "/api/expenses", nil, tok, "")
	var list []expenseView
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list %+v", list)
	}
}
