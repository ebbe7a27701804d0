package share

import (
	"context"
	"fmt"

	appconfig "rollcall/internal/config"
)

// Uploader stores a finished file and returns a link to it.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// FromConfig picks the uploader named by cfg.ShareBackend.
func FromConfig(ctx context.Context, cfg appconfig.App) (Uploader, error) {
	switch cfg.ShareBackend {
	case "", "local":
		return NewLocalDir(cfg.ExportDir), nil
	case "s3":
		return NewS3(ctx, S3Config{
			Endpoint:   cfg.S3Endpoint,
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PresignTTL: cfg.S3PresignTTL,
		})
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, fmt.Errorf("share: cloudinary needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
		return NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	}
	return nil, fmt.Errorf("share: unknown backend %q", cfg.ShareBackend)
}
