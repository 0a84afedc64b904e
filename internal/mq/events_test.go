package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type memoryBackend struct {
	sent    []published
	publish error
	inbox   []Message
	results []error
}

func (b *memoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.publish != nil {
		return "", b.publish
	}
	b.sent = append(b.sent, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (b *memoryBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range b.inbox {
		b.results = append(b.results, handler(ctx, msg))
	}
	return nil
}

func (b *memoryBackend) Close() error { return nil }

func TestScorePublisher_PublishScore(t *testing.T) {
	backend := &memoryBackend{}
	publisher := NewScorePublisher(New(backend), "score-events")

	score := types.Score{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Mode:      types.ModeClicks,
		ModeValue: 100,
		CPS:       7.25,
		Accuracy:  99,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.PublishScore(context.Background(), score))

	require.Len(t, backend.sent, 1)
	sent := backend.sent[0]
	assert.Equal(t, "score-events", sent.channel)
	assert.Equal(t, "clicks", sent.attrs["mode"])
	assert.Equal(t, "100", sent.attrs["mode_value"])
	assert.Equal(t, "score.created", sent.attrs["event"])

	var event types.ScoreEvent
	require.NoError(t, json.Unmarshal(sent.data, &event))
	assert.Equal(t, types.NewScoreEvent(score), event)
}

func TestScorePublisher_PublishError(t *testing.T) {
	backend := &memoryBackend{publish: errors.New("broker down")}
	publisher := NewScorePublisher(New(backend), "score-events")

	err := publisher.PublishScore(context.Background(), types.Score{Mode: types.ModeTime, ModeValue: 15})
	assert.EqualError(t, err, "broker down")
}

func TestScorePublisher_SubscribeScores(t *testing.T) {
	event := types.ScoreEvent{ScoreID: uuid.New(), Mode: types.ModeTime, ModeValue: 60, CPS: 5}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	backend := &memoryBackend{inbox: []Message{
		{ID: "1", Data: data},
		{ID: "2", Data: []byte("{not json")},
		{ID: "3", Data: []byte(`{"mode":"sprint"}`)},
	}}
	publisher := NewScorePublisher(New(backend), "score-events")

	var got []types.ScoreEvent
	err = publisher.SubscribeScores(context.Background(), func(_ context.Context, e types.ScoreEvent) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, event.ScoreID, got[0].ScoreID)
	require.Len(t, backend.results, 3)
	assert.NoError(t, backend.results[0])
	assert.Error(t, backend.results[1])
	assert.Error(t, backend.results[2])
}

func TestOpen_NoneAndUnknown(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	assert.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}
