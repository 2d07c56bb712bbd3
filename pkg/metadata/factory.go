package metadata

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"resumetailor-hq/tailor/pkg/config"
)

// New builds the configured store.
func New(cfg config.MetadataConfig, awsCfg aws.Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "dynamodb":
		return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.ResultsTable, cfg.MasterTable), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Backend)
	}
}
