// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package syncstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// Topic carries status events.
const Topic = "fieldsync.status"

// Event kinds.
const (
	EventStatus  = "status"
	EventMessage = "message"
)

// Event is the wire form published on Topic and pushed to websocket clients.
type Event struct {
	Kind    string    `json:"kind"`
	Status  *Status   `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// NewPubSub returns the in-process pub/sub used for status fan-out. Publish
// returns only after every subscriber acked, so subscribers see events in
// publish order.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(logging.NewSlogLogger()),
	)
}

// Publisher encodes events onto Topic. A nil *Publisher discards events.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps pub, usually the GoChannel from NewPubSub.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// PublishStatus publishes a status snapshot. Failures are logged, not
// returned: a missed push is corrected by the next one.
func (p *Publisher) PublishStatus(s Status) {
	p.publish(Event{Kind: EventStatus, Status: &s, At: time.Now().UTC()})
}

// PublishMessage publishes one drain progress message.
func (p *Publisher) PublishMessage(msg string) {
	p.publish(Event{Kind: EventMessage, Message: msg, At: time.Now().UTC()})
}

func (p *Publisher) publish(ev Event) {
	if p == nil || p.pub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to encode status event")
		return
	}
	if err := p.pub.Publish(Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		logging.Warn().Err(err).Str("kind", ev.Kind).Msg("failed to publish status event")
	}
}

// Broadcaster receives raw event payloads. The websocket hub implements it.
type Broadcaster interface {
	BroadcastRaw(data []byte)
}

// Relay forwards every event on Topic to a Broadcaster. It is a suture
// service.
type Relay struct {
	sub message.Subscriber
	out Broadcaster
}

// NewRelay returns a Relay reading from sub.
func NewRelay(sub message.Subscriber, out Broadcaster) *Relay {
	return &Relay{sub: sub, out: out}
}

// Serve subscribes to Topic and forwards events in arrival order until ctx
// is canceled. Every message is acked after it reaches the Broadcaster.
func (r *Relay) Serve(ctx context.Context) error {
	msgs, err := r.sub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", Topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.out.BroadcastRaw(msg.Payload)
			msg.Ack()
		}
	}
}

func (r *Relay) String() string {
	return "syncstatus-relay"
}
