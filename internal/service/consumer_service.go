package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/pkg/enrichment"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/session"
	"ai-secretary-funnel-be/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	consumerModule    = "EnrichmentConsumer"
	enrichmentTimeout = 45 * time.Second
)

// ProfileLookup is the enrichment webhook client.
type ProfileLookup interface {
	Lookup(ctx context.Context, handle string) (enrichment.Result, error)
}

// Subscriber is the watermill side the consumer reads jobs from.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber Subscriber
	topicName  string
	visitors   VisitorRegistry
	lookup     ProfileLookup
	events     events.Publisher
	logger     logger.ILogger
	metrics    *metrics.Funnel
}

func NewConsumerService(
	subscriber Subscriber,
	topicName string,
	visitors VisitorRegistry,
	lookup ProfileLookup,
	publisher events.Publisher,
	log logger.ILogger,
	m *metrics.Funnel,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		visitors:   visitors,
		lookup:     lookup,
		events:     publisher,
		logger:     log,
		metrics:    m,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

// processMessage always acks: a failed lookup degrades to the zero result,
// which is a normal outcome for the funnel.
func (cs *consumerService) processMessage(msg *message.Message) {
	defer msg.Ack()

	var job dto.EnrichmentJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error(consumerModule, "Invalid enrichment job", map[string]interface{}{"error": err.Error()})
		return
	}

	mgr, ok := cs.visitors.Get(job.VisitorId)
	if !ok {
		cs.metrics.Enrichment("stale")
		return
	}
	if mgr.Snapshot().Profile.InstagramHandle != job.InstagramHandle {
		// The visitor changed the handle after the job was queued.
		cs.metrics.Enrichment("stale")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), enrichmentTimeout)
	defer cancel()

	result, err := cs.lookup.Lookup(ctx, job.InstagramHandle)
	outcome := "found"
	switch {
	case err != nil:
		outcome = "failed"
		cs.logger.Warn(consumerModule, "Profile lookup failed, continuing without enrichment", map[string]interface{}{
			"instagram_handle": job.InstagramHandle,
			"error":            err.Error(),
		})
		result = enrichment.Result{}
	case !result.Found():
		outcome = "empty"
	}
	cs.metrics.Enrichment(outcome)

	// The visitor may have moved on while the webhook was running.
	state := mgr.Snapshot()
	if state.Profile.InstagramHandle != job.InstagramHandle {
		cs.metrics.Enrichment("stale")
		return
	}

	mgr.ApplyEnrichment(session.Enrichment{
		HasInstagramData: result.Found(),
		ProfilePhotoUrl:  result.ProfilePhotoUrl,
		SamplePosts:      result.SamplePosts,
		AiInsights:       result.AiInsights,
		CustomPrompt:     BuildCustomPrompt(state.Profile, result.AiInsights),
	})

	cs.logger.Info(consumerModule, "Enrichment applied", map[string]interface{}{
		"visitor_id":       job.VisitorId,
		"instagram_handle": job.InstagramHandle,
		"outcome":          outcome,
	})

	if cs.events != nil {
		if err := cs.events.Publish(ctx, events.EnrichmentCompleted(state.SessionId, job.InstagramHandle, result.Found())); err != nil {
			cs.logger.Warn(consumerModule, "Failed to publish enrichment event", map[string]interface{}{"error": err.Error()})
		}
	}
}
