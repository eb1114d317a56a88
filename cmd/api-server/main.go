// Command api-server runs the top-up storefront HTTP API.
//
// All configuration comes from TOPUP_-prefixed environment variables; see
// internal/app.Config for the full list.
package main

import (
	"context"

	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/app"
)

func main() {
	sdkapp.Run(run)
}

func run(ctx context.Context, lg *zap.Logger, t *sdkapp.Telemetry) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	return app.Run(ctx, lg, t, cfg)
}
