// Package config provides configuration management for the tailor service.
//
// Configuration is read from a YAML file, completed with defaults and then
// overridden from the environment. A .env file beside the configuration
// file (or in the working directory) is loaded first so local development
// can keep secrets out of the YAML.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("config.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TAILOR_SECTION_FIELD:
//
//   - TAILOR_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TAILOR_QUOTA_BACKEND overrides quota.backend
//   - TAILOR_GENERATIVE_API_KEY overrides generative.api_key
//
// # Quota Ceilings
//
// Ceilings are keyed by tier and then by service counter name. Entries that
// are not configured fall back to the standard table:
//
//	quota:
//	  backend: dynamodb
//	  ceilings:
//	    guest:
//	      bedrock_requests: 5
//	      textract_requests: 10
//	    user:
//	      bedrock_requests: 50
//	      textract_requests: 100
//
// Validation rejects tables in which a signed-in user would not receive
// more than a guest.
package config
