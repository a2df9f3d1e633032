package migrate

import (
	"context"
	"fmt"
	"os"

	"github.com/nextcoretech/procurement-backend/pkg/config"
	"github.com/nextcoretech/procurement-backend/pkg/db"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations automatically in dev environments
// when PROCURE_AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return nil
	}
	if !cfg.App.IsDev() || os.Getenv("PROCURE_AUTO_MIGRATE") == "" {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql db handle: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "applying pending migrations")
	}
	return Run(ctx, sqlDB, DefaultDir, "up")
}
