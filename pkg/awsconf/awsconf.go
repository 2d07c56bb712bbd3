// Package awsconf builds the shared aws.Config used by every AWS-backed
// component.
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"resumetailor-hq/tailor/pkg/config"
)

// RoleSessionName is used when assuming RoleARN.
const RoleSessionName = "tailor-service"

// Load resolves credentials in this order: assumed role (with static base
// credentials when given), static credentials, default chain.
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	switch {
	case cfg.RoleARN != "":
		return loadWithAssumeRole(ctx, cfg)
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options(cfg, staticProvider(cfg))...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load AWS config with static credentials: %w", err)
		}
		return awsCfg, nil
	default:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options(cfg, nil)...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return awsCfg, nil
	}
}

func loadWithAssumeRole(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var base aws.CredentialsProvider
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		base = staticProvider(cfg)
	}

	baseCfg, err := awsconfig.LoadDefaultConfig(ctx, options(cfg, base)...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load base AWS config for role assumption: %w", err)
	}

	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(baseCfg), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		if cfg.RoleExternalID != "" {
			o.ExternalID = aws.String(cfg.RoleExternalID)
		}
		o.RoleSessionName = RoleSessionName
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options(cfg, aws.NewCredentialsCache(provider))...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config with assume role: %w", err)
	}
	return awsCfg, nil
}

func staticProvider(cfg config.AWSConfig) aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
}

func options(cfg config.AWSConfig, creds aws.CredentialsProvider) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	return opts
}
