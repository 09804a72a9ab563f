package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"spendocr/pkg/parsers"
)

// ClovaConfig configures the CLOVA OCR general endpoint.
type ClovaConfig struct {
	Endpoint    string
	Secret      string
	Version     string
	Timeout     time.Duration
	JPEGQuality int
	// RPS bounds outbound requests per second; zero means unlimited.
	RPS float64
}

// ClovaClient calls the CLOVA OCR API. A single attempt is made per call;
// retrying is up to the caller.
type ClovaClient struct {
	cfg     ClovaConfig
	http    *http.Client
	limiter *rate.Limiter
}

// ClovaResult is a provider response mapped onto recognized lines.
type ClovaResult struct {
	Lines       []parsers.Line
	RawText     string
	InferResult []string
}

type clovaMessage struct {
	Version   string       `json:"version"`
	RequestID string       `json:"requestId"`
	Timestamp int64        `json:"timestamp"`
	Images    []clovaImage `json:"images"`
}

type clovaImage struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

type clovaResponse struct {
	Images []struct {
		InferResult string       `json:"inferResult"`
		Message     string       `json:"message"`
		Fields      []clovaField `json:"fields"`
	} `json:"images"`
}

type clovaField struct {
	InferText       string   `json:"inferText"`
	InferConfidence *float64 `json:"inferConfidence"`
	BoundingPoly    struct {
		Vertices []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"vertices"`
	} `json:"boundingPoly"`
}

func NewClovaClient(cfg ClovaConfig) *ClovaClient {
	if cfg.Version == "" {
		cfg.Version = "V2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &ClovaClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Available reports whether both endpoint and secret are configured.
func (c *ClovaClient) Available() bool {
	return c != nil && c.cfg.Endpoint != "" && c.cfg.Secret != ""
}

func (c *ClovaClient) Name() string { return "clova" }

// Recognize satisfies Recognizer.
func (c *ClovaClient) Recognize(ctx context.Context, img image.Image) ([]parsers.Line, error) {
	res, err := c.Do(ctx, img)
	if err != nil {
		return nil, err
	}
	return res.Lines, nil
}

// Do uploads img as JPEG and maps the response fields onto lines.
func (c *ClovaClient) Do(ctx context.Context, img image.Image) (ClovaResult, error) {
	if !c.Available() {
		return ClovaResult{}, ErrProviderDisabled
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ClovaResult{}, fmt.Errorf("clova rate limit: %w", err)
	}

	body, contentType, err := c.encodeRequest(img)
	if err != nil {
		return ClovaResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return ClovaResult{}, fmt.Errorf("build clova request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-OCR-SECRET", c.cfg.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return ClovaResult{}, fmt.Errorf("clova request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ClovaResult{}, &ProviderError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var decoded clovaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ClovaResult{}, fmt.Errorf("decode clova response: %w", err)
	}
	return mapClovaResponse(decoded)
}

func (c *ClovaClient) encodeRequest(img image.Image) (*bytes.Buffer, string, error) {
	name := "upload-" + hexID() + ".jpg"
	msg, err := json.Marshal(clovaMessage{
		Version:   c.cfg.Version,
		RequestID: hexID(),
		Timestamp: time.Now().UnixMilli(),
		Images:    []clovaImage{{Format: "jpg", Name: name}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode clova message: %w", err)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if err := imaging.Encode(fw, img, imaging.JPEG, imaging.JPEGQuality(c.cfg.JPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="message"`)
	h.Set("Content-Type", "application/json")
	mw, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := mw.Write(msg); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func mapClovaResponse(r clovaResponse) (ClovaResult, error) {
	var res ClovaResult
	res.Lines = []parsers.Line{}
	for _, img := range r.Images {
		res.InferResult = append(res.InferResult, img.InferResult)
		for _, f := range img.Fields {
			line := parsers.Line{Text: parsers.Normalize(f.InferText), Confidence: f.InferConfidence}
			for _, v := range f.BoundingPoly.Vertices {
				line.BBox = append(line.BBox, parsers.Point{v.X, v.Y})
			}
			res.Lines = append(res.Lines, line)
		}
	}
	if len(res.Lines) == 0 {
		return ClovaResult{}, ErrEmptyResponse
	}
	res.RawText = joinNonEmpty(res.Lines)
	return res, nil
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
