package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"spendocr/models"
	"spendocr/pkg/ocr"
)

// ErrNotFound is returned when no expense has the requested id.
var ErrNotFound = errors.New("expense not found")

// Store persists payloads in postgres.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres using dsn.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for maintenance tools.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates the tables. Each model is migrated on its own
// so one failure does not block the other.
func (s *Store) Migrate() error {
	var errs []error
	if err := s.db.AutoMigrate(&models.Expense{}); err != nil {
		log.Printf("migration warning (expenses): %v", err)
		errs = append(errs, err)
	}
	if err := s.db.AutoMigrate(&models.Upload{}); err != nil {
		log.Printf("migration warning (uploads): %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewRecord maps a payload onto a row with a freshly generated id.
func NewRecord(owner, fileName string, p ocr.Payload) (models.Expense, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return models.Expense{}, fmt.Errorf("encode payload: %w", err)
	}
	rec := models.Expense{
		ID:        uuid.NewString(),
		Owner:     owner,
		Source:    p.Parsed.Source,
		Merchant:  p.Parsed.Merchant,
		Amount:    p.Parsed.Amount,
		Timestamp: p.Parsed.Timestamp,
		FileName:  fileName,
		Payload:   string(raw),
	}
	if p.Debug != nil {
		rec.Engine = p.Debug.Engine
		rec.Variant = p.Debug.Variant
	}
	return rec, nil
}

// SaveExpense stores p and returns the stored row.
func (s *Store) SaveExpense(ctx context.Context, owner, fileName string, p ocr.Payload) (models.Expense, error) {
	rec, err := NewRecord(owner, fileName, p)
	if err != nil {
		return models.Expense{}, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return rec, nil
}

// GetExpense loads one expense. A non-empty owner restricts the lookup to
// that owner's records.
func (s *Store) GetExpense(ctx context.Context, id, owner string) (models.Expense, error) {
	var rec models.Expense
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}
	return rec, nil
}

// ListFilter narrows ListExpenses.
type ListFilter struct {
	Owner  string
	Limit  int
	Offset int
}

// ListExpenses returns expenses newest first. Limit defaults to 50 and is
// capped at 500.
func (s *Store) ListExpenses(ctx context.Context, f ListFilter) ([]models.Expense, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	q := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(max(f.Offset, 0))
	if f.Owner != "" {
		q = q.Where("owner = ?", f.Owner)
	}
	var out []models.Expense
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ExpensesBetween returns every expense created in [from, to), oldest first.
func (s *Store) ExpensesBetween(ctx context.Context, owner string, from, to time.Time) ([]models.Expense, error) {
	q := s.db.WithContext(ctx).Where("created_at >= ? AND created_at < ?", from, to).Order("created_at")
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	var out []models.Expense
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return out, nil
}

// FailedUploads returns uploads that were recorded without a usable result.
func (s *Store) FailedUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	var out []models.Upload
	q := s.db.WithContext(ctx).Where("failed = ?", true).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query failed uploads: %w", err)
	}
	return out, nil
}

// HasFailedUpload reports whether an unresolved failed upload exists for
// storePath.
func (s *Store) HasFailedUpload(ctx context.Context, storePath string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("failed = ? AND store_path = ?", true, storePath).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup failed upload: %w", err)
	}
	return n > 0, nil
}

// ResolveUpload links a previously failed upload to the expense that
// eventually came out of it.
func (s *Store) ResolveUpload(ctx context.Context, uploadID uint, expenseID string) error {
	res := s.db.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", uploadID).
		Updates(map[string]any{"failed": false, "failed_reason": "", "expense_id": expenseID})
	if res.Error != nil {
		return fmt.Errorf("resolve upload %d: %w", uploadID, res.Error)
	}
	return nil
}

// SaveUpload records an image received for OCR.
func (s *Store) SaveUpload(ctx context.Context, u *models.Upload) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// DecodePayload returns the payload stored with rec.
func DecodePayload(rec models.Expense) (ocr.Payload, error) {
	var p ocr.Payload
	if err := json.Unmarshal([]byte(rec.Payload), &p); err != nil {
		return ocr.Payload{}, fmt.Errorf("decode payload %s: %w", rec.ID, err)
	}
	return p, nil
}
