package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/clickrush/apiserver/types"
)

// ScorePublisher publishes score-created events on a single channel.
type ScorePublisher struct {
	mq      *MQ
	channel string
}

func NewScorePublisher(m *MQ, channel string) *ScorePublisher {
	return &ScorePublisher{mq: m, channel: channel}
}

// PublishScore sends the event for score, tagged with its mode and value.
func (p *ScorePublisher) PublishScore(ctx context.Context, score types.Score) error {
	data, err := json.Marshal(types.NewScoreEvent(score))
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"event":      "score.created",
		"mode":       string(score.Mode),
		"mode_value": strconv.Itoa(score.ModeValue),
	}
	_, err = p.mq.Publish(ctx, p.channel, data, attrs)
	return err
}

// SubscribeScores decodes score events from the channel and hands them
// to fn. Undecodable messages are reported to fn's caller as errors.
func (p *ScorePublisher) SubscribeScores(ctx context.Context, fn func(context.Context, types.ScoreEvent) error) error {
	return p.mq.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeScoreEvent(msg)
		if err != nil {
			return err
		}
		return fn(ctx, event)
	})
}

// DecodeScoreEvent parses a score event payload.
func DecodeScoreEvent(msg Message) (types.ScoreEvent, error) {
	var event types.ScoreEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.ScoreEvent{}, err
	}
	if !event.Mode.Valid() {
		return types.ScoreEvent{}, errors.New("score event has unknown mode")
	}
	return event, nil
}
