package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeriveInvoice creates the tax invoice for a proforma. Calling it
// again for the same proforma returns the existing invoice with
// created=false.
func (s *Service) DeriveInvoice(ctx context.Context, proformaID string) (domain.Document, bool, error) {
	return s.derive(ctx, proformaID, domain.TypeProforma)
}

// DeriveCreditNote creates the credit note reversing an invoice. The
// credit note mirrors the full invoice totals; partial credit notes
// are not supported.
func (s *Service) DeriveCreditNote(ctx context.Context, invoiceID string) (domain.Document, bool, error) {
	return s.derive(ctx, invoiceID, domain.TypeInvoice)
}

func (s *Service) derive(ctx context.Context, rawID string, sourceType domain.DocumentType) (domain.Document, bool, error) {
	targetType, ok := sourceType.DerivesInto()
	if !ok {
		return domain.Document{}, false, domain.ErrInvalidType
	}

	sourceID, err := parseID(rawID)
	if err != nil {
		return domain.Document{}, false, domain.ErrSourceNotFound
	}

	out, created, err := s.deriveFrom(ctx, sourceID, sourceType, targetType)
	if err != nil {
		s.metrics.Derivation(string(targetType), "error")
		return domain.Document{}, false, err
	}

	if created {
		s.metrics.Derivation(string(targetType), "created")
		s.log.Info("document derived",
			zap.String("source_id", sourceID.String()),
			zap.String("document_id", out.ID.String()),
			zap.String("type", string(out.Type)),
			zap.String("number", out.DisplayNumber),
		)
	} else {
		s.metrics.Derivation(string(targetType), "existing")
	}
	return out, created, nil
}

func (s *Service) deriveFrom(ctx context.Context, sourceID snowflake.ID, sourceType, targetType domain.DocumentType) (domain.Document, bool, error) {
	// Unlocked pre-checks. They keep obviously doomed or already-settled
	// calls from burning a sequence number; the transaction below
	// re-verifies everything under the row lock.
	var probe domain.Document
	if err := s.db.WithContext(ctx).First(&probe, "id = ?", sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, domain.ErrSourceNotFound
		}
		return domain.Document{}, false, err
	}
	if probe.Type != sourceType {
		return domain.Document{}, false, domain.ErrSourceNotFound
	}

	if probe.DerivedDocumentID != nil {
		existing, err := existingDerived(ctx, s.db, probe, targetType)
		if err != nil {
			return domain.Document{}, false, err
		}
		return existing, false, nil
	}

	var itemCount int64
	if err := s.db.WithContext(ctx).Model(&domain.LineItem{}).
		Where("document_id = ?", probe.ID).
		Count(&itemCount).Error; err != nil {
		return domain.Document{}, false, err
	}
	if itemCount == 0 {
		return domain.Document{}, false, domain.ErrEmptySource
	}

	// Reserved before the transaction opens. The counter runs on its own
	// connection, so reserving inside the transaction would need a
	// second one from the pool; and a rollback below must leave a gap,
	// never a reuse.
	seq, err := s.numbering.Next(ctx, targetType)
	if err != nil {
		return domain.Document{}, false, err
	}

	var out domain.Document
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src domain.Document
		if err := s.forUpdate(tx).First(&src, "id = ?", sourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSourceNotFound
			}
			return err
		}
		if src.Type != sourceType {
			return domain.ErrSourceNotFound
		}

		// A concurrent call may have won since the probe. Its document
		// stands; the number reserved above stays a gap.
		if src.DerivedDocumentID != nil {
			existing, err := existingDerived(ctx, tx, src, targetType)
			if err != nil {
				return err
			}
			out = existing
			return nil
		}

		// A derived row without the forward link on the source means a
		// prior partial failure. Surface it, never repair silently.
		var orphan domain.Document
		err := tx.Where("source_document_id = ? AND type = ?", src.ID, targetType).First(&orphan).Error
		if err == nil {
			return domain.ErrInconsistentLink
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		items, err := listItems(ctx, tx, src.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrEmptySource
		}

		now := time.Now().UTC()
		dueAt := now.AddDate(0, 0, s.billing.PaymentTermDays)
		newID := s.genID.Generate()

		variableSymbol := src.VariableSymbol
		if variableSymbol == "" {
			variableSymbol = strconv.FormatInt(seq, 10)
		}

		newItems := make([]domain.LineItem, 0, len(items))
		for _, item := range items {
			copied := item
			copied.ID = s.genID.Generate()
			copied.DocumentID = newID
			copied.CreatedAt = now
			newItems = append(newItems, copied)
		}

		netTotal, grossTotal, err := s.computeTotals(src.VATRate, newItems)
		if err != nil {
			return err
		}

		newDoc := domain.Document{
			ID:             newID,
			Type:           targetType,
			SequenceNumber: &seq,
			DisplayNumber:  s.numbering.Format(targetType, seq),

			SourceDocumentID: &src.ID,

			CustomerName:  src.CustomerName,
			CustomerEmail: src.CustomerEmail,
			CompanyID:     src.CompanyID,
			TaxID:         src.TaxID,
			VATID:         src.VATID,
			Street:        src.Street,
			City:          src.City,
			Zipcode:       src.Zipcode,
			Country:       src.Country,

			VariableSymbol: variableSymbol,
			PaymentMethod:  src.PaymentMethod,
			Note:           src.Note,

			VATRate:    src.VATRate,
			NetTotal:   netTotal,
			GrossTotal: grossTotal,

			NotificationLog: datatypes.JSON("[]"),

			IssuedAt:  now,
			DueAt:     &dueAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(&newDoc).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNumberTaken
			}
			return err
		}
		if err := tx.Create(&newItems).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Document{}).
			Where("id = ?", src.ID).
			Updates(map[string]any{
				"derived_document_id": newDoc.ID,
				"updated_at":          now,
			}).Error; err != nil {
			return err
		}

		out = newDoc
		created = true
		return nil
	})
	if err != nil {
		return domain.Document{}, false, err
	}
	return out, created, nil
}

// existingDerived resolves the settled derivation a source points at,
// verifying the backward link agrees.
func existingDerived(ctx context.Context, conn *gorm.DB, src domain.Document, targetType domain.DocumentType) (domain.Document, error) {
	var existing domain.Document
	if err := conn.WithContext(ctx).First(&existing, "id = ?", *src.DerivedDocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, domain.ErrInconsistentLink
		}
		return domain.Document{}, err
	}
	if existing.Type != targetType ||
		existing.SourceDocumentID == nil ||
		*existing.SourceDocumentID != src.ID {
		return domain.Document{}, domain.ErrInconsistentLink
	}
	return existing, nil
}
