package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFillsIDAndTimestamp(t *testing.T) {
	a := New(TypeGoalCreated, 42, 3, GoalCreatedPayload{GoalID: 1, CategoryID: 2, Title: "Run"})
	b := New(TypeGoalCreated, 42, 3, nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"goal_created"`)
	assert.Contains(t, string(raw), `"title":"Run"`)
}

func TestChannelPublisher(t *testing.T) {
	p := NewChannelPublisher(1)
	require.NoError(t, p.Publish(context.Background(), New(TypeVerificationIssued, 1, 0, nil)))

	// buffer full: the context bounds the wait
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, p.Publish(ctx, New(TypeVerificationIssued, 1, 0, nil)))

	evt := <-p.Events()
	assert.Equal(t, TypeVerificationIssued, evt.Type)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(" , ", "topic")
	require.Error(t, err)
	_, err = NewKafkaPublisher("localhost:9092", "")
	require.Error(t, err)

	p, err := NewKafkaPublisher("localhost:9092, localhost:9093", "goalbot.events")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), Event{}))
	require.NoError(t, p.Close())
}
