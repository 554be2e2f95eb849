package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport is the subset of Client used by Signal.
type Transport interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

type changeMessage struct {
	Origin uuid.UUID `json:"origin"`
	At     time.Time `json:"at"`
}

var errDisconnected = errors.New("mqtt transport disconnected")

// Signal relays "devices changed" between processes sharing a topic. It is
// both a relay (outgoing) and a feed (incoming); messages it published itself
// are ignored.
type Signal struct {
	transport Transport
	topic     string
	qos       byte
	origin    uuid.UUID
	log       *zap.Logger

	checkEvery time.Duration
	now        func() time.Time
}

func NewSignal(transport Transport, topic string, qos byte, log *zap.Logger) *Signal {
	return &Signal{
		transport:  transport,
		topic:      topic,
		qos:        qos,
		origin:     uuid.New(),
		log:        log,
		checkEvery: 5 * time.Second,
		now:        time.Now,
	}
}

func (s *Signal) Origin() uuid.UUID {
	return s.origin
}

// Relay publishes a change message carrying this instance's origin.
func (s *Signal) Relay(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(changeMessage{Origin: s.origin, At: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}
	return s.transport.Publish(s.topic, s.qos, false, payload)
}

// Listen subscribes to the topic and calls onChange for every message from
// another origin. It returns when ctx is done or the transport drops.
func (s *Signal) Listen(ctx context.Context, onChange func()) error {
	err := s.transport.Subscribe(s.topic, s.qos, func(_ string, payload []byte) {
		var msg changeMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("malformed change message", zap.ByteString("payload", payload), zap.Error(err))
			return
		}
		if msg.Origin == s.origin {
			return
		}
		onChange()
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.transport.Unsubscribe(s.topic); err != nil {
			s.log.Debug("unsubscribe change topic", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.transport.IsConnected() {
				return errDisconnected
			}
		}
	}
}
