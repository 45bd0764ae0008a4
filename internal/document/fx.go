package document

import (
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/document/numbering"
	"github.com/smallbiznis/doklady/internal/document/service"
	"github.com/smallbiznis/doklady/internal/vat"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("document.service",
	fx.Provide(func(cfg config.Config) config.Billing { return cfg.Billing }),
	fx.Provide(func(cfg config.Config) vat.Calculator {
		return vat.New(cfg.Billing.MoneyPrecision)
	}),
	fx.Provide(func(db *gorm.DB, cfg config.Config) *numbering.Authority {
		return numbering.New(db, numbering.Config{
			Width:            cfg.Billing.NumberWidth,
			PrefixProforma:   cfg.Billing.PrefixProforma,
			PrefixInvoice:    cfg.Billing.PrefixInvoice,
			PrefixCreditNote: cfg.Billing.PrefixCreditNote,
		})
	}),
	fx.Provide(service.NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Document{},
		&domain.LineItem{},
		&numbering.Sequence{},
	)
}
