package extraction

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"

	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/objectstore"
)

// New builds the configured extractor, instrumented with recorder.
func New(cfg config.ExtractionConfig, awsCfg aws.Config, store objectstore.Store, recorder Recorder, logger *slog.Logger) (Extractor, error) {
	var inner Extractor
	switch cfg.Backend {
	case "pdf":
		inner = NewPDFExtractor(store)
	case "textract":
		tx := NewTextract(awsCfg)
		if cfg.Mode == "async" {
			inner = NewPoller(tx,
				WithBackoff(FixedBackoff(cfg.PollInterval)),
				WithMaxAttempts(cfg.MaxPollAttempts),
				WithPollerLogger(logger.With("component", "extraction.poller")),
			)
		} else {
			inner = tx
		}
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Backend)
	}
	return NewInstrumented(inner, cfg.Backend, recorder), nil
}
