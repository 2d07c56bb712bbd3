package objectstore

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"resumetailor-hq/tailor/pkg/config"
)

// New returns the Store selected by cfg.Backend. awsCfg is only used by
// the s3 backend.
func New(cfg config.StorageConfig, awsCfg aws.Config) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(awsCfg, cfg.Bucket, cfg.UsePathStyle), nil
	case "filesystem":
		return NewFSStore(cfg.Root)
	default:
		return nil, fmt.Errorf("objectstore: unknown backend %q", cfg.Backend)
	}
}
