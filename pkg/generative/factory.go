package generative

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"resumetailor-hq/tailor/pkg/config"
)

// New builds the configured completer, instrumented with recorder.
func New(ctx context.Context, cfg config.GenerativeConfig, awsCfg aws.Config, recorder Recorder) (Completer, error) {
	var inner Completer
	switch cfg.Provider {
	case "bedrock":
		inner = NewBedrock(awsCfg, cfg.ModelID)
	case "gemini":
		g, err := NewGemini(ctx, cfg.APIKey, cfg.ModelID)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown generative provider %q", cfg.Provider)
	}
	return NewInstrumented(inner, cfg.Provider, cfg.ModelID, recorder).WithTimeout(cfg.Timeout), nil
}
