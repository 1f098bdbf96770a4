package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/inkpost/apiserver/types"
)

// PostEvents publishes post lifecycle events on a single channel. Events of
// one post share a key so ordered backends keep them in sequence.
type PostEvents struct {
	mq      *MQ
	channel string
}

// NewPostEvents returns a publisher and consumer for the given channel.
func NewPostEvents(queue *MQ, channel string) (*PostEvents, error) {
	if queue == nil {
		return nil, errors.New("mq is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("post events channel is required")
	}
	return &PostEvents{mq: queue, channel: channel}, nil
}

// PublishPostEvent implements services.EventPublisher.
func (p *PostEvents) PublishPostEvent(ctx context.Context, event types.PostEvent) error {
	if _, err := p.mq.PublishJSON(ctx, p.channel, string(event.Type), event.PostID.String(), event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Consume passes every event on the channel to fn until ctx is cancelled.
// Messages that fail to decode are acknowledged and dropped.
func (p *PostEvents) Consume(ctx context.Context, fn func(context.Context, types.PostEvent) error) error {
	return p.mq.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event types.PostEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}
