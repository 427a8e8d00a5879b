package storage

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/smallbiznis/tmsbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

// New selects the blob backend from configuration. GCS uses explicit credentials when given and
// application default credentials otherwise.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	log = log.Named("storage")

	if cfg.Storage.Provider != config.StorageProviderGCS {
		log.Info("using local blob store", zap.String("root", cfg.Storage.LocalRoot))
		return NewLocalStore(cfg.Storage.LocalRoot)
	}

	var opts []option.ClientOption
	if cfg.Storage.GCSCredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Storage.GCSCredentialsJSON)))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := client.Bucket(cfg.Storage.Bucket).Attrs(ctx)
			if err != nil {
				log.Warn("gcs bucket not accessible", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using gcs blob store", zap.String("bucket", cfg.Storage.Bucket))
	return NewGCSStore(client, cfg.Storage.Bucket), nil
}
