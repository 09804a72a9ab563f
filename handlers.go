package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spendocr/models"
	"spendocr/pkg/ocr"
	"spendocr/pkg/parsers"
	"spendocr/pkg/store"
)

var unsafeNameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func setupRoutes(r *gin.Engine) {
	r.GET("/health", healthHandler)
	api := r.Group("/api")
	api.Use(jwtAuthMiddleware())
	api.POST("/ocr", ocrHandler)
	api.POST("/parse", parseHandler)
	api.GET("/expenses", listExpensesHandler)
	api.GET("/expenses/:id", getExpenseHandler)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ocrResponse is the payload plus the id it was stored under, if any.
type ocrResponse struct {
	ID string `json:"id,omitempty"`
	ocr.Payload
}

// ocrHandler recognizes an uploaded receipt or notification screenshot.
func ocrHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty filename"})
		return
	}
	if file.Size > cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %d bytes)", cfg.MaxUploadBytes)})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxUploadBytes+1))
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image: " + err.Error()})
		return
	}

	start := time.Now()
	payload := pipeline.Process(c.Request.Context(), img)
	engine := ""
	if payload.Debug != nil {
		engine = payload.Debug.Engine
	}
	log.Printf("OCR file=%s engine=%s lines=%d took=%s", file.Filename, engine, len(payload.Lines), time.Since(start).Round(time.Millisecond))

	resp := ocrResponse{Payload: payload}
	owner := ownerFromContext(c)
	if rec, ok := persist(c, owner, file.Filename, payload); ok {
		resp.ID = rec.ID
	}
	if cfg.SaveUploads {
		saveUpload(c, file.Filename, file.Header.Get("Content-Type"), data, resp.ID)
	}
	c.JSON(http.StatusOK, resp)
}

// parseHandler runs the parsers over lines recognized elsewhere.
func parseHandler(c *gin.Context) {
	var req struct {
		Lines []parsers.Line `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload := pipeline.FromLines(req.Lines)
	resp := ocrResponse{Payload: payload}
	if rec, ok := persist(c, ownerFromContext(c), "", payload); ok {
		resp.ID = rec.ID
	}
	c.JSON(http.StatusOK, resp)
}

// persist stores the payload when a database is configured. Failures are
// logged; the caller still answers with the payload.
func persist(c *gin.Context, owner, fileName string, p ocr.Payload) (models.Expense, bool) {
	if expenses == nil {
		return models.Expense{}, false
	}
	rec, err := expenses.SaveExpense(c.Request.Context(), owner, fileName, p)
	if err != nil {
		log.Printf("persist expense failed: %v", err)
		return models.Expense{}, false
	}
	return rec, true
}

// saveUpload keeps the original image under the upload base directory.
func saveUpload(c *gin.Context, name, contentType string, data []byte, expenseID string) {
	if err := ensureUploadBase(); err != nil {
		return
	}
	safe := unsafeNameRE.ReplaceAllString(filepath.Base(name), "_")
	rel := uuid.NewString() + "-" + safe
	if err := os.WriteFile(filepath.Join(uploadBaseDir(), rel), data, 0644); err != nil {
		log.Printf("save upload %s failed: %v", name, err)
		return
	}
	if expenses == nil {
		return
	}
	up := models.Upload{FileName: name, StorePath: rel, ContentType: contentType, Size: int64(len(data))}
	if expenseID != "" {
		up.ExpenseID = &expenseID
	}
	if err := expenses.SaveUpload(c.Request.Context(), &up); err != nil {
		log.Printf("record upload %s failed: %v", name, err)
	}
}

// expenseView is a stored expense with its payload decoded.
type expenseView struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Owner     string          `json:"owner,omitempty"`
	Source    string          `json:"source"`
	Merchant  *string         `json:"merchant"`
	Amount    *int64          `json:"amount"`
	Timestamp *string         `json:"timestamp"`
	Engine    string          `json:"engine,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	FileName  string          `json:"file_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func viewOf(e models.Expense, withPayload bool) expenseView {
	v := expenseView{
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		Owner:     e.Owner,
		Source:    e.Source,
		Merchant:  e.Merchant,
		Amount:    e.Amount,
		Timestamp: e.Timestamp,
		Engine:    e.Engine,
		Variant:   e.Variant,
		FileName:  e.FileName,
	}
	if withPayload {
		v.Payload = json.RawMessage(e.Payload)
	}
	return v
}

func listExpensesHandler(c *gin.Context) {
	if expenses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, err := expenses.ListExpenses(c.Request.Context(), store.ListFilter{
		Owner:  ownerFromContext(c),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]expenseView, 0, len(items))
	for _, e := range items {
		out = append(out, viewOf(e, false))
	}
	c.JSON(http.StatusOK, out)
}

func getExpenseHandler(c *gin.Context) {
	if expenses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	e, err := expenses.GetExpense(c.Request.Context(), c.Param("id"), ownerFromContext(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, viewOf(e, true))
}
