package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/provider/resilience"
)

// Job types carried in JobMessage.JobType.
const (
	JobRouteSearch = "route_search"
	JobHealthCheck = "health_check"
)

// ErrMalformedMessage is returned for payloads that will never parse.
// Such messages are acked so they are not redelivered.
var ErrMalformedMessage = errors.New("malformed message")

// JobMessage is the payload of a worker message.
type JobMessage struct {
	JobType   string  `json:"job_type"`
	RequestID string  `json:"request_id,omitempty"`
	Queries   []Query `json:"queries,omitempty"`
}

// SummaryMessage is published after a route_search batch.
type SummaryMessage struct {
	RequestID string `json:"request_id,omitempty"`
	*BatchResult
}

// Publisher sends batch summaries onward.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// UpstreamReporter reports the circuit health of outbound clients.
// *resilience.Registry implements it.
type UpstreamReporter interface {
	Snapshot() []resilience.UpstreamHealth
}

// Processor decodes worker messages and runs the matching job.
type Processor struct {
	batch     *BatchJob
	publisher Publisher
	upstreams UpstreamReporter
	logger    zerolog.Logger
}

// ProcessorConfig holds configuration for creating a Processor.
type ProcessorConfig struct {
	BatchJob *BatchJob

	// Publisher receives batch summaries (optional).
	Publisher Publisher

	// Upstreams is checked by health_check (optional).
	Upstreams UpstreamReporter

	Logger zerolog.Logger
}

// NewProcessor creates a message processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		batch:     cfg.BatchJob,
		publisher: cfg.Publisher,
		upstreams: cfg.Upstreams,
		logger:    cfg.Logger,
	}
}

// Process handles one message payload. A nil error means the message is done.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobRouteSearch:
		return p.handleRouteSearch(ctx, msg)
	case JobHealthCheck:
		return p.handleHealthCheck(ctx)
	default:
		p.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (p *Processor) handleRouteSearch(ctx context.Context, msg JobMessage) error {
	if len(msg.Queries) == 0 {
		return fmt.Errorf("%w: route_search without queries", ErrMalformedMessage)
	}

	p.logger.Info().
		Str("request_id", msg.RequestID).
		Int("queries", len(msg.Queries)).
		Msg("starting route search batch")

	result, err := p.batch.Run(ctx, msg.Queries)
	if err != nil {
		return err
	}

	// Redeliver when the engine failed more often than it answered.
	if result.Failed > result.Succeeded {
		return fmt.Errorf("too many search failures: %d/%d", result.Failed, len(msg.Queries))
	}

	if p.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(SummaryMessage{RequestID: msg.RequestID, BatchResult: result})
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	attrs := map[string]string{"job_type": JobRouteSearch}
	if msg.RequestID != "" {
		attrs["request_id"] = msg.RequestID
	}
	if err := p.publisher.Publish(ctx, payload, attrs); err != nil {
		return fmt.Errorf("publishing summary: %w", err)
	}
	return nil
}

func (p *Processor) handleHealthCheck(ctx context.Context) error {
	p.logger.Debug().Msg("running health check")

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.batch.Probe(probeCtx); err != nil {
		return fmt.Errorf("health check failed: catalog: %w", err)
	}

	if p.upstreams != nil {
		for _, u := range p.upstreams.Snapshot() {
			if u.Status() == resilience.StatusUnhealthy {
				return fmt.Errorf("health check failed: upstream %s circuit %s", u.Name, u.CircuitState)
			}
		}
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler receives worker messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	publisher        *pubsub.Publisher
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string

	// TopicName receives batch summaries (optional).
	TopicName string

	BatchJob  *BatchJob
	Upstreams UpstreamReporter
	Logger    zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Searches are slow; keep few in flight and extend leases generously.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	h := &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		logger:           cfg.Logger,
	}

	var pub Publisher
	if cfg.TopicName != "" {
		h.publisher = client.Publisher(cfg.TopicName)
		pub = topicPublisher{publisher: h.publisher}
	}

	h.processor = NewProcessor(ProcessorConfig{
		BatchJob:  cfg.BatchJob,
		Publisher: pub,
		Upstreams: cfg.Upstreams,
		Logger:    cfg.Logger,
	})

	return h, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close flushes pending summaries and closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.publisher != nil {
		h.publisher.Stop()
	}
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrBatchTooLarge):
		logger.Error().Err(err).Msg("discarding message")
		msg.Ack()
		return
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (p topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	_, err := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}).Get(ctx)
	return err
}
