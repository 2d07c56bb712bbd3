package awsconf

import (
	"context"
	"testing"

	"resumetailor-hq/tailor/pkg/config"
)

func TestLoad_StaticCredentials(t *testing.T) {
	cfg := config.AWSConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:4566",
	}

	awsCfg, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Errorf("Region = %q", awsCfg.Region)
	}
	if awsCfg.BaseEndpoint == nil || *awsCfg.BaseEndpoint != "http://localhost:4566" {
		t.Errorf("BaseEndpoint = %v", awsCfg.BaseEndpoint)
	}

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Errorf("AccessKeyID = %q", creds.AccessKeyID)
	}
}

func TestLoad_AssumeRoleBuildsProvider(t *testing.T) {
	cfg := config.AWSConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		RoleARN:         "arn:aws:iam::123456789012:role/tailor",
	}

	awsCfg, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if awsCfg.Credentials == nil {
		t.Fatal("expected a credentials provider")
	}
}
