// Package numbering assigns per-type document sequence numbers.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/doklady/internal/document/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrExhausted is returned when the next sequence value no longer fits
// the configured zero-pad width. Requires a configuration change.
var ErrExhausted = errors.New("numbering_exhausted")

// Sequence is the persisted counter row, one per document type.
type Sequence struct {
	DocumentType string    `gorm:"primaryKey;type:text"`
	LastValue    int64     `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Sequence) TableName() string { return "document_sequences" }

// Config carries the display prefix per type and the zero-pad width.
type Config struct {
	Width            int
	PrefixProforma   string
	PrefixInvoice    string
	PrefixCreditNote string
}

// Authority hands out sequence numbers. A reservation is never rolled
// back: if the enclosing document creation fails the number is skipped,
// not reused.
type Authority struct {
	db  *gorm.DB
	cfg Config
	max int64

	mu sync.Mutex
}

func New(db *gorm.DB, cfg Config) *Authority {
	if cfg.Width <= 0 {
		cfg.Width = 6
	}
	max := int64(1)
	for i := 0; i < cfg.Width; i++ {
		max *= 10
	}
	return &Authority{db: db, cfg: cfg, max: max - 1}
}

// Next reserves the next sequence number for the given type. The
// counter row is read-incremented under a row lock in its own short
// transaction, which works on all supported dialects; the mutex
// serializes callers within the process so concurrent reservations
// never collide even on databases without row-level write locking.
func (a *Authority) Next(ctx context.Context, t domain.DocumentType) (int64, error) {
	if !t.Valid() {
		return 0, domain.ErrInvalidType
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	var next int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Sequence
		err := forUpdate(tx).First(&row, "document_type = ?", string(t)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			next = 1
			return tx.Create(&Sequence{
				DocumentType: string(t),
				LastValue:    next,
				UpdatedAt:    now,
			}).Error
		}
		if err != nil {
			return err
		}

		next = row.LastValue + 1
		return tx.Model(&Sequence{}).
			Where("document_type = ?", row.DocumentType).
			Updates(map[string]any{
				"last_value": next,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return 0, err
	}
	if next > a.max {
		return 0, ErrExhausted
	}
	return next, nil
}

// forUpdate adds a row lock on databases that support it. SQLite
// serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

// Format renders the display number: type prefix plus the zero-padded
// sequence.
func (a *Authority) Format(t domain.DocumentType, seq int64) string {
	return fmt.Sprintf("%s%0*d", a.Prefix(t), a.cfg.Width, seq)
}

// Prefix returns the configured display prefix for a type.
func (a *Authority) Prefix(t domain.DocumentType) string {
	switch t {
	case domain.TypeProforma:
		return a.cfg.PrefixProforma
	case domain.TypeInvoice:
		return a.cfg.PrefixInvoice
	case domain.TypeCreditNote:
		return a.cfg.PrefixCreditNote
	default:
		return ""
	}
}
