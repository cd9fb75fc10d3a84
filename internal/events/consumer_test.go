package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreamReader struct {
	mock.Mock
}

func (m *MockStreamReader) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	args := m.Called(ctx, stream, group, start)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (m *MockStreamReader) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	args := m.Called(ctx, a)
	cmd := redis.NewXStreamSliceCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	cmd.SetVal(args.Get(0).([]redis.XStream))
	return cmd
}

func (m *MockStreamReader) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	m.Called(ctx, stream, group, ids)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (m *MockStreamReader) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	args := m.Called(ctx, a)
	cmd := redis.NewXAutoClaimCmd(ctx)
	if err := args.Error(2); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	msgs, _ := args.Get(0).([]redis.XMessage)
	cmd.SetVal(msgs, args.String(1))
	return cmd
}

func uploadedMessage(t *testing.T, id string, event UploadedEvent) redis.XMessage {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"id": "e-" + id, "type": EventTypeUploaded, "payload": event})
	require.NoError(t, err)
	return redis.XMessage{ID: id, Values: map[string]interface{}{
		"type": EventTypeUploaded,
		"data": string(data),
	}}
}

func TestConsumerProcessesAndAcks(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)

	event := UploadedEvent{SourceURL: "https://lynxauto.info/p", Articles: []string{"L1", "L2"}}
	reader.On("XReadGroup", ctx, mock.MatchedBy(func(a *redis.XReadGroupArgs) bool {
		return a.Group == "listing-consumer-group" && a.Streams[0] == DefaultStream && a.Streams[1] == ">"
	})).Return([]redis.XStream{{
		Stream: DefaultStream,
		Messages: []redis.XMessage{
			uploadedMessage(t, "1-0", event),
			{ID: "2-0", Values: map[string]interface{}{"type": "SOMETHING_ELSE"}},
		},
	}}, nil)
	reader.On("XAck", ctx, DefaultStream, "listing-consumer-group", []string{"1-0"}).Return()
	reader.On("XAck", ctx, DefaultStream, "listing-consumer-group", []string{"2-0"}).Return()

	var got []UploadedEvent
	c := NewConsumer(reader, ConsumerConfig{}, func(ctx context.Context, e UploadedEvent) error {
		got = append(got, e)
		return nil
	}, testLogger())

	require.NoError(t, c.poll(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, event, got[0])
	reader.AssertExpectations(t)
}

func TestConsumerLeavesFailedMessagesPending(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)
	reader.On("XReadGroup", ctx, mock.Anything).Return([]redis.XStream{{
		Stream:   DefaultStream,
		Messages: []redis.XMessage{uploadedMessage(t, "1-0", UploadedEvent{Articles: []string{"L1"}})},
	}}, nil)

	c := NewConsumer(reader, ConsumerConfig{}, func(context.Context, UploadedEvent) error {
		return errors.New("disk full")
	}, testLogger())

	require.NoError(t, c.poll(ctx))
	reader.AssertNotCalled(t, "XAck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerAcksMalformedMessages(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)
	reader.On("XReadGroup", ctx, mock.Anything).Return([]redis.XStream{{
		Stream: DefaultStream,
		Messages: []redis.XMessage{
			{ID: "1-0", Values: map[string]interface{}{"type": EventTypeUploaded, "data": "{broken"}},
			{ID: "2-0", Values: map[string]interface{}{"type": EventTypeUploaded}},
		},
	}}, nil)
	reader.On("XAck", ctx, DefaultStream, "listing-consumer-group", []string{"1-0"}).Return()
	reader.On("XAck", ctx, DefaultStream, "listing-consumer-group", []string{"2-0"}).Return()

	called := false
	c := NewConsumer(reader, ConsumerConfig{}, func(context.Context, UploadedEvent) error {
		called = true
		return nil
	}, testLogger())

	require.NoError(t, c.poll(ctx))
	assert.False(t, called)
	reader.AssertExpectations(t)
}

func TestConsumerReclaimRetriesPendingMessages(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)

	first := UploadedEvent{Articles: []string{"L1"}}
	second := UploadedEvent{Articles: []string{"L2"}}
	reader.On("XAutoClaim", ctx, mock.MatchedBy(func(a *redis.XAutoClaimArgs) bool {
		return a.Start == "0-0" && a.Group == "listing-consumer-group" && a.Consumer == "worker-a" && a.MinIdle == 30*time.Second
	})).Return([]redis.XMessage{uploadedMessage(t, "1-0", first)}, "7-0", nil).Once()
	reader.On("XAutoClaim", ctx, mock.MatchedBy(func(a *redis.XAutoClaimArgs) bool {
		return a.Start == "7-0"
	})).Return([]redis.XMessage{uploadedMessage(t, "7-0", second)}, "0-0", nil).Once()
	reader.On("XAck", ctx, DefaultStream, "listing-consumer-group", []string{"1-0"}).Return()

	var got []UploadedEvent
	c := NewConsumer(reader, ConsumerConfig{Consumer: "worker-a", ReclaimIdle: 30 * time.Second}, func(ctx context.Context, e UploadedEvent) error {
		got = append(got, e)
		if len(e.Articles) > 0 && e.Articles[0] == "L2" {
			return errors.New("still failing")
		}
		return nil
	}, testLogger())

	require.NoError(t, c.reclaim(ctx))
	assert.Equal(t, []UploadedEvent{first, second}, got)
	reader.AssertExpectations(t)
	reader.AssertNumberOfCalls(t, "XAck", 1)
}

func TestConsumerReclaimError(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)
	reader.On("XAutoClaim", ctx, mock.Anything).Return(nil, "", errors.New("NOGROUP"))

	c := NewConsumer(reader, ConsumerConfig{}, nil, testLogger())
	assert.Error(t, c.reclaim(ctx))
}

func TestConsumerPollNoMessages(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)
	reader.On("XReadGroup", ctx, mock.Anything).Return(nil, redis.Nil)

	c := NewConsumer(reader, ConsumerConfig{}, nil, testLogger())
	assert.NoError(t, c.poll(ctx))
}

func TestConsumerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := new(MockStreamReader)
	reader.On("XGroupCreateMkStream", ctx, "stream:custom", "g", "0").
		Return(errors.New("BUSYGROUP Consumer Group name already exists"))
	reader.On("XAutoClaim", ctx, mock.Anything).Return(nil, "0-0", nil).Once()
	reader.On("XReadGroup", ctx, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, redis.Nil)

	c := NewConsumer(reader, ConsumerConfig{Stream: "stream:custom", Group: "g", Block: time.Millisecond}, nil, testLogger())

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumerRunGroupCreateFailure(t *testing.T) {
	ctx := context.Background()
	reader := new(MockStreamReader)
	reader.On("XGroupCreateMkStream", ctx, DefaultStream, "listing-consumer-group", "0").
		Return(errors.New("NOAUTH Authentication required"))

	c := NewConsumer(reader, ConsumerConfig{}, nil, testLogger())
	assert.Error(t, c.Run(ctx))
}
