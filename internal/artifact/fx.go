package artifact

import (
	"github.com/smallbiznis/doklady/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("artifact",
	fx.Provide(func(cfg config.Config) (Store, error) {
		store, err := NewFileStore(cfg.Artifact.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}),
	fx.Provide(NewController),
)
