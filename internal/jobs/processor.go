package jobs

import (
	"log/slog"

	"github.com/solshare/pipeline/pkg/logger"
)

// ProcessorOption configures a processor
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	timeouts Timeouts
	logger   *slog.Logger
}

// WithTimeouts sets the collaborator call timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) ProcessorOption {
	return func(o *processorOptions) {
		o.timeouts = t.withDefaults()
	}
}

// WithProcessorLogger sets the logger for the processor
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newProcessorOptions(name QueueName, opts []ProcessorOption) processorOptions {
	o := processorOptions{
		timeouts: DefaultTimeouts(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(logger.Component("processor"), logger.Queue(name.String()))
	return o
}

// Processors holds one processor per queue.
type Processors struct {
	AIAnalysis   Processor[AIAnalysisPayload]
	Embedding    Processor[EmbeddingPayload]
	Notification Processor[NotificationPayload]
	FeedRefresh  Processor[FeedRefreshPayload]
	SyncChain    Processor[SyncChainPayload]
}

// Dependencies are the collaborators shared by the processors.
type Dependencies struct {
	Analyzer Analyzer
	Store    PostStore
	Cache    FeedCache
	Notifier Notifier
	Index    VectorIndex
	Timeouts Timeouts
	Logger   *slog.Logger
}

// NewProcessors builds the standard processor for every queue.
func NewProcessors(deps Dependencies) Processors {
	opts := []ProcessorOption{
		WithTimeouts(deps.Timeouts),
		WithProcessorLogger(deps.Logger),
	}

	return Processors{
		AIAnalysis:   NewAIAnalysisProcessor(deps.Analyzer, deps.Store, opts...),
		Embedding:    NewEmbeddingProcessor(deps.Index, opts...),
		Notification: NewNotificationProcessor(deps.Store, deps.Notifier, opts...),
		FeedRefresh:  NewFeedRefreshProcessor(deps.Cache, opts...),
		SyncChain:    NewSyncChainProcessor(deps.Store, opts...),
	}
}
