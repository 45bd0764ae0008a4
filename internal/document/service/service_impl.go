package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/document/numbering"
	"github.com/smallbiznis/doklady/internal/observability/metrics"
	"github.com/smallbiznis/doklady/internal/vat"
	"github.com/smallbiznis/doklady/pkg/db"
	"github.com/smallbiznis/doklady/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Numbering *numbering.Authority
	Calc      vat.Calculator
	Billing   config.Billing
	Metrics   *metrics.Recorder `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	numbering *numbering.Authority
	calc      vat.Calculator
	billing   config.Billing
	metrics   *metrics.Recorder

	docrepo  repository.Repository[domain.Document]
	itemrepo repository.Repository[domain.LineItem]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("document.service"),
		genID:     p.GenID,
		numbering: p.Numbering,
		calc:      p.Calc,
		billing:   p.Billing,
		metrics:   p.Metrics,

		docrepo:  repository.ProvideStore[domain.Document](p.DB),
		itemrepo: repository.ProvideStore[domain.LineItem](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDocumentRequest) (domain.Document, error) {
	if req.Type != domain.TypeProforma && req.Type != domain.TypeInvoice {
		return domain.Document{}, domain.ErrInvalidType
	}

	rate := s.billing.DefaultVATRate
	if req.VATRate != nil {
		rate = *req.VATRate
	}
	if rate.IsNegative() {
		return domain.Document{}, vat.ErrInvalidRate
	}

	now := time.Now().UTC()
	issuedAt := now
	if req.IssuedAt != nil {
		issuedAt = req.IssuedAt.UTC()
	}
	dueAt := issuedAt.AddDate(0, 0, s.billing.PaymentTermDays)

	docID := s.genID.Generate()
	items, err := s.buildItems(docID, rate, req.Items, now)
	if err != nil {
		return domain.Document{}, err
	}
	netTotal, grossTotal, err := s.computeTotals(rate, items)
	if err != nil {
		return domain.Document{}, err
	}

	// The sequence reservation happens outside the transaction below;
	// a failed creation leaves a gap, never a reused number.
	seq, err := s.numbering.Next(ctx, req.Type)
	if err != nil {
		return domain.Document{}, err
	}

	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = s.billing.DefaultPaymentMethod
	}
	variableSymbol := strings.TrimSpace(req.VariableSymbol)
	if variableSymbol == "" {
		variableSymbol = strconv.FormatInt(seq, 10)
	}

	doc := domain.Document{
		ID:             docID,
		Type:           req.Type,
		SequenceNumber: &seq,
		DisplayNumber:  s.numbering.Format(req.Type, seq),

		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CompanyID:     strings.TrimSpace(req.CompanyID),
		TaxID:         strings.TrimSpace(req.TaxID),
		VATID:         strings.TrimSpace(req.VATID),
		Street:        strings.TrimSpace(req.Street),
		City:          strings.TrimSpace(req.City),
		Zipcode:       strings.TrimSpace(req.Zipcode),
		Country:       strings.TrimSpace(req.Country),

		VariableSymbol: variableSymbol,
		PaymentMethod:  paymentMethod,
		Note:           req.Note,

		VATRate:    rate,
		NetTotal:   netTotal,
		GrossTotal: grossTotal,

		NotificationLog: datatypes.JSON("[]"),

		IssuedAt:  issuedAt,
		DueAt:     &dueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNumberTaken
			}
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.log.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("type", string(doc.Type)),
		zap.String("number", doc.DisplayNumber),
	)
	return doc, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateDocumentRequest) (domain.Document, error) {
	docID, err := parseID(id)
	if err != nil {
		return domain.Document{}, domain.ErrDocumentNotFound
	}

	var updated domain.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc domain.Document
		if err := s.forUpdate(tx).First(&doc, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDocumentNotFound
			}
			return err
		}
		if !doc.Mutable() {
			return domain.ErrImmutable
		}

		applyString := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		applyString(&doc.CustomerName, req.CustomerName)
		applyString(&doc.CustomerEmail, req.CustomerEmail)
		applyString(&doc.CompanyID, req.CompanyID)
		applyString(&doc.TaxID, req.TaxID)
		applyString(&doc.VATID, req.VATID)
		applyString(&doc.Street, req.Street)
		applyString(&doc.City, req.City)
		applyString(&doc.Zipcode, req.Zipcode)
		applyString(&doc.Country, req.Country)
		applyString(&doc.VariableSymbol, req.VariableSymbol)
		applyString(&doc.PaymentMethod, req.PaymentMethod)
		if req.Note != nil {
			doc.Note = *req.Note
		}
		if req.PaidAt != nil {
			paidAt := req.PaidAt.UTC()
			doc.PaidAt = &paidAt
		}
		if req.VATRate != nil {
			if req.VATRate.IsNegative() {
				return vat.ErrInvalidRate
			}
			doc.VATRate = *req.VATRate
		}

		var items []domain.LineItem
		if req.Items != nil {
			if err := tx.Where("document_id = ?", doc.ID).Delete(&domain.LineItem{}).Error; err != nil {
				return err
			}
			items, err = s.buildItems(doc.ID, doc.VATRate, req.Items, time.Now().UTC())
			if err != nil {
				return err
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return err
				}
			}
		} else {
			items, err = listItems(ctx, tx, doc.ID)
			if err != nil {
				return err
			}
			if req.VATRate != nil {
				// A document-rate change reprices items without an
				// override rate.
				for i := range items {
					if items[i].VATRate != nil {
						continue
					}
					gross, err := s.calc.GrossFromNet(items[i].NetPrice, doc.VATRate)
					if err != nil {
						return err
					}
					if !gross.Equal(items[i].GrossPrice) {
						items[i].GrossPrice = gross
						if err := tx.Model(&domain.LineItem{}).
							Where("id = ?", items[i].ID).
							Update("gross_price", gross).Error; err != nil {
							return err
						}
					}
				}
			}
		}

		netTotal, grossTotal, err := s.computeTotals(doc.VATRate, items)
		if err != nil {
			return err
		}
		doc.NetTotal = netTotal
		doc.GrossTotal = grossTotal
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Save(&doc).Error; err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Document, error) {
	docID, err := parseID(id)
	if err != nil {
		return domain.Document{}, domain.ErrDocumentNotFound
	}

	item, err := s.docrepo.FindOne(ctx, &domain.Document{ID: docID})
	if err != nil {
		return domain.Document{}, err
	}
	if item == nil {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return *item, nil
}

func (s *Service) ListItems(ctx context.Context, id string) ([]domain.LineItem, error) {
	docID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrDocumentNotFound
	}
	return listItems(ctx, s.db, docID)
}

func (s *Service) List(ctx context.Context, req domain.ListDocumentsRequest) (domain.ListDocumentsResponse, error) {
	filter := &domain.Document{}
	if req.Type != nil {
		filter.Type = *req.Type
	}

	items, err := s.docrepo.Find(ctx, filter, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC, id DESC")
	})
	if err != nil {
		return domain.ListDocumentsResponse{}, err
	}

	documents := make([]domain.Document, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		documents = append(documents, *item)
	}
	return domain.ListDocumentsResponse{Documents: documents}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	docID, err := parseID(id)
	if err != nil {
		return domain.ErrDocumentNotFound
	}

	result := s.db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", docID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (s *Service) MarkNotified(ctx context.Context, id string, recipient string) error {
	docID, err := parseID(id)
	if err != nil {
		return domain.ErrDocumentNotFound
	}
	recipient = normalizeRecipient(recipient)
	if recipient == "" {
		return domain.ErrInvalidRecipient
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc domain.Document
		if err := s.forUpdate(tx).First(&doc, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDocumentNotFound
			}
			return err
		}

		recipients, err := decodeNotificationLog(doc.NotificationLog)
		if err != nil {
			return err
		}
		for _, existing := range recipients {
			if existing == recipient {
				return nil
			}
		}
		recipients = append(recipients, recipient)

		encoded, err := json.Marshal(recipients)
		if err != nil {
			return err
		}
		return tx.Model(&domain.Document{}).
			Where("id = ?", doc.ID).
			Update("notification_log", datatypes.JSON(encoded)).Error
	})
}

func (s *Service) IsNotified(ctx context.Context, id string, recipient string) (bool, error) {
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	recipient = normalizeRecipient(recipient)
	if recipient == "" {
		return false, domain.ErrInvalidRecipient
	}

	recipients, err := decodeNotificationLog(doc.NotificationLog)
	if err != nil {
		return false, err
	}
	for _, existing := range recipients {
		if existing == recipient {
			return true, nil
		}
	}
	return false, nil
}

// buildItems completes each input's missing price side and assigns
// positions in input order.
func (s *Service) buildItems(docID snowflake.ID, docRate decimal.Decimal, inputs []domain.LineItemInput, now time.Time) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(inputs))
	for i, in := range inputs {
		rate := docRate
		if in.VATRate != nil {
			rate = *in.VATRate
		}
		if rate.IsNegative() {
			return nil, vat.ErrInvalidRate
		}

		var net, gross decimal.Decimal
		var err error
		switch {
		case in.NetPrice != nil:
			net = s.calc.Round(*in.NetPrice)
			gross, err = s.calc.GrossFromNet(net, rate)
		case in.GrossPrice != nil:
			gross = s.calc.Round(*in.GrossPrice)
			net, err = s.calc.NetFromGross(gross, rate)
		default:
			return nil, domain.ErrMissingPrice
		}
		if err != nil {
			return nil, err
		}

		quantity := in.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}

		items = append(items, domain.LineItem{
			ID:          s.genID.Generate(),
			DocumentID:  docID,
			Position:    i + 1,
			Description: strings.TrimSpace(in.Description),
			Quantity:    quantity,
			VATRate:     in.VATRate,
			NetPrice:    net,
			GrossPrice:  gross,
			CreatedAt:   now,
		})
	}
	return items, nil
}

// computeTotals sums line amounts. When every item bills at the
// document rate the gross total is derived from the net total so the
// net/gross/rate relation holds exactly; with mixed item rates it is
// the sum of line gross amounts.
func (s *Service) computeTotals(docRate decimal.Decimal, items []domain.LineItem) (decimal.Decimal, decimal.Decimal, error) {
	netTotal := decimal.Zero
	grossSum := decimal.Zero
	uniform := true
	for _, item := range items {
		netTotal = netTotal.Add(s.calc.Round(item.NetPrice.Mul(item.Quantity)))
		grossSum = grossSum.Add(s.calc.Round(item.GrossPrice.Mul(item.Quantity)))
		if !item.EffectiveVATRate(docRate).Equal(docRate) {
			uniform = false
		}
	}
	if !uniform {
		return netTotal, grossSum, nil
	}
	grossTotal, err := s.calc.GrossFromNet(netTotal, docRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return netTotal, grossTotal, nil
}

// forUpdate adds a row lock on databases that support it. SQLite
// serializes writers on its own.
func (s *Service) forUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

func listItems(ctx context.Context, db *gorm.DB, docID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("position ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func decodeNotificationLog(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var recipients []string
	if err := json.Unmarshal(raw, &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

func normalizeRecipient(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
