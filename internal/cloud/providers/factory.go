// Package providers selects the drive folder source named by configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/fedesuarez16/opting-sub000/internal/api"
	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/cloud/providers/azure"
	"github.com/fedesuarez16/opting-sub000/internal/cloud/providers/s3"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
)

// NewFolderSource creates the backend for cfg.Drive.Backend ("http" when empty).
func NewFolderSource(ctx context.Context, cfg *config.Config, logger *logging.Logger) (cloud.FolderSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var (
		src cloud.FolderSource
		err error
	)
	switch cfg.Drive.Backend {
	case config.BackendHTTP, "":
		src, err = api.NewClient(cfg, api.WithLogger(logger.Named("drive")))
	case config.BackendS3:
		src, err = s3.NewFromConfig(ctx, cfg, logger.Named("s3"))
	case config.BackendAzure:
		src, err = azure.NewFromConfig(cfg, logger.Named("azure"))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Drive.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("backend", cloud.BackendName(src)).Msg("drive folder source ready")
	return src, nil
}
