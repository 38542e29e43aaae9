package service

import (
	"context"
	"encoding/json"

	"ai-saleschat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// eventEnvelope is the wire form events take on the in-process bus.
type eventEnvelope struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}

type busPublisher struct {
	pubSub *gochannel.GoChannel
	topic  string
}

// NewBusPublisher bridges domain events onto the watermill in-process
// bus so local consumers (analytics) see every event regardless of
// whether NATS is reachable.
func NewBusPublisher(pubSub *gochannel.GoChannel, topic string) EventPublisher {
	return &busPublisher{pubSub: pubSub, topic: topic}
}

func (p *busPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(eventEnvelope{
		Type:      event.EventType(),
		Payload:   event.Payload(),
		Timestamp: event.Timestamp().Unix(),
	})
	if err != nil {
		return err
	}
	return p.pubSub.Publish(p.topic, message.NewMessage(watermill.NewUUID(), data))
}

type fanoutPublisher struct {
	targets []EventPublisher
}

// NewFanoutPublisher publishes each event to every target. Nil targets
// are skipped so callers can pass optional backends directly. The first
// error is returned after all targets have been attempted.
func NewFanoutPublisher(targets ...EventPublisher) EventPublisher {
	live := make([]EventPublisher, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			live = append(live, t)
		}
	}
	return &fanoutPublisher{targets: live}
}

func (p *fanoutPublisher) Publish(ctx context.Context, event events.Event) error {
	var firstErr error
	for _, target := range p.targets {
		if err := target.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
