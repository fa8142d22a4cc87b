package pipeline

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/pkg/config"
	"github.com/certhours/cert-hours-api/pkg/events"
)

// Orchestrator runs the three stage consumer groups. Each stage owns its own
// group on its own topic, so stages scale and fail independently.
type Orchestrator struct {
	consumers []*events.Consumer
	logger    *zap.Logger
}

// NewOrchestrator builds the consumer set for the given stages.
func NewOrchestrator(
	client *redis.Client,
	cfg config.PipelineConfig,
	ocr *OCRStage,
	metadata *MetadataStage,
	categorization *CategorizationStage,
	logger *zap.Logger,
) *Orchestrator {
	group := cfg.Group
	if group == "" {
		group = "cert-pipeline"
	}

	build := func(topic string, workers int, handler events.Handler) *events.Consumer {
		return events.NewConsumer(client, handler, events.ConsumerConfig{
			Topic:         topic,
			Group:         fmt.Sprintf("%s.%s", group, topic),
			Workers:       workers,
			BlockInterval: cfg.BlockInterval,
			ClaimMinIdle:  cfg.ClaimMinIdle,
			Logger:        logger,
		})
	}

	return &Orchestrator{
		consumers: []*events.Consumer{
			build(TopicIngest, cfg.OCRWorkers, ocr.Handle),
			build(TopicOCR, cfg.MetadataWorkers, metadata.Handle),
			build(TopicMetadata, cfg.CategorizerWorkers, categorization.Handle),
		},
		logger: logger,
	}
}

// Start launches every stage consumer.
func (o *Orchestrator) Start(ctx context.Context) error {
	for _, consumer := range o.consumers {
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start pipeline: %w", err)
		}
	}
	o.logger.Info("certificate pipeline started")
	return nil
}

// Stop drains every stage consumer, blocking until workers exit.
func (o *Orchestrator) Stop() {
	for _, consumer := range o.consumers {
		consumer.Stop()
	}
	o.logger.Info("certificate pipeline stopped")
}
