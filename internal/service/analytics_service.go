package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ai-saleschat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IAnalyticsService interface {
	Consume(ctx context.Context) error
	Snapshot() map[string]int64
}

// analyticsService tails the in-process event bus and keeps running
// counters per event type, plus per-stage arrival counts for funnel
// conversion tracking.
type analyticsService struct {
	pubSub *gochannel.GoChannel
	topic  string

	mu       sync.RWMutex
	counters map[string]int64
}

func NewAnalyticsService(pubSub *gochannel.GoChannel, topic string) IAnalyticsService {
	return &analyticsService{
		pubSub:   pubSub,
		topic:    topic,
		counters: make(map[string]int64),
	}
}

func (as *analyticsService) Consume(ctx context.Context) error {
	messages, err := as.pubSub.Subscribe(ctx, as.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			as.processMessage(msg)
		}
	}()

	return nil
}

func (as *analyticsService) processMessage(msg *message.Message) {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		log.Printf("[ERROR] Failed to unmarshal event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	as.mu.Lock()
	as.counters[envelope.Type]++
	if envelope.Type == events.TypeSessionStageMoved {
		if to, ok := envelope.Payload["to"].(string); ok {
			as.counters["stage_entered:"+to]++
		}
	}
	as.mu.Unlock()

	msg.Ack()
}

// Snapshot returns a copy of the counters for the ops surface.
func (as *analyticsService) Snapshot() map[string]int64 {
	as.mu.RLock()
	defer as.mu.RUnlock()

	out := make(map[string]int64, len(as.counters))
	for k, v := range as.counters {
		out[k] = v
	}
	return out
}
