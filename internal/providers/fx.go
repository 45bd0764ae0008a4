package providers

import (
	"github.com/smallbiznis/doklady/internal/providers/email"
	"github.com/smallbiznis/doklady/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
