package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawnwatch/internal/types"
)

type mockSQSSender struct {
	calls     []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{}, nil
}

type stubLookup struct {
	treatments map[string]*types.ScheduledTreatment
	err        error
}

func (s *stubLookup) GetTreatmentContext(_ context.Context, id string) (*types.ScheduledTreatment, error) {
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.treatments[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundTreatment, "treatment not found", nil)
	}
	return t, nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var (
	now       = time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	scheduled = time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
)

func newPublisher(t *testing.T, queue string, threshold int) (*AlertPublisher, *mockSQSSender) {
	t.Helper()
	sender := &mockSQSSender{}
	lookup := &stubLookup{treatments: map[string]*types.ScheduledTreatment{
		"t1": {ID: "t1", UserID: "u1", LawnID: "l1", TreatmentType: types.TreatmentFertilization, ScheduledDate: scheduled},
	}}
	p, err := NewAlertPublisher(sender, queue, lookup, threshold, fixedClock(now), nil)
	require.NoError(t, err)
	return p, sender
}

func alertsFor(id string, priorities ...int) []types.WeatherAlert {
	out := make([]types.WeatherAlert, len(priorities))
	for i, p := range priorities {
		out[i] = types.WeatherAlert{ID: id + "-" + string(rune('a'+i)), TreatmentID: id, Priority: p, Message: "too windy"}
	}
	return out
}

func TestAlertPublisher_Dispatch_PlainBody(t *testing.T) {
	p, sender := newPublisher(t, "https://sqs.us-east-1.amazonaws.com/123/alerts", 0)

	err := p.Dispatch(context.Background(), "b1", "t1", alertsFor("t1", 4, 2))
	require.NoError(t, err)
	require.Len(t, sender.calls, 1)

	in := sender.calls[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/alerts", *in.QueueUrl)
	assert.Equal(t, "b1", *in.MessageAttributes["batch_id"].StringValue)
	assert.Equal(t, "4", *in.MessageAttributes["priority"].StringValue)
	assert.NotContains(t, in.MessageAttributes, "content_encoding")
	assert.Nil(t, in.MessageGroupId)

	env, err := DecodeEnvelope(*in.MessageBody, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", env.UserID)
	assert.Equal(t, "l1", env.LawnID)
	assert.Equal(t, types.TreatmentFertilization, env.TreatmentType)
	assert.Equal(t, scheduled, env.ScheduledDate)
	assert.Equal(t, now, env.PublishedAt)
	assert.Equal(t, 4, env.Priority)
	assert.Len(t, env.Alerts, 2)
}

func TestAlertPublisher_Dispatch_CompressesLargeBodies(t *testing.T) {
	p, sender := newPublisher(t, "https://sqs.example/alerts", 256)

	alerts := alertsFor("t1", 5, 5, 5, 5, 5, 5)
	for i := range alerts {
		alerts[i].Message = strings.Repeat("wind gusts exceed tolerance ", 10)
	}
	require.NoError(t, p.Dispatch(context.Background(), "b2", "t1", alerts))

	in := sender.calls[0]
	require.Contains(t, in.MessageAttributes, "content_encoding")
	enc := *in.MessageAttributes["content_encoding"].StringValue
	assert.Equal(t, EncodingZstdBase64, enc)
	assert.False(t, strings.HasPrefix(*in.MessageBody, "{"))

	env, err := DecodeEnvelope(*in.MessageBody, enc)
	require.NoError(t, err)
	assert.Len(t, env.Alerts, 6)
	assert.Equal(t, alerts[0].Message, env.Alerts[0].Message)
}

func TestAlertPublisher_Dispatch_FIFOQueue(t *testing.T) {
	p, sender := newPublisher(t, "https://sqs.example/alerts.fifo", 0)

	require.NoError(t, p.Dispatch(context.Background(), "b3", "t1", alertsFor("t1", 1)))
	in := sender.calls[0]
	require.NotNil(t, in.MessageGroupId)
	assert.Equal(t, "t1", *in.MessageGroupId)
	assert.Equal(t, "b3:t1", *in.MessageDeduplicationId)
}

func TestAlertPublisher_Dispatch_UnknownTreatmentDropped(t *testing.T) {
	p, sender := newPublisher(t, "q", 0)

	err := p.Dispatch(context.Background(), "b4", "gone", alertsFor("gone", 3))
	assert.NoError(t, err)
	assert.Empty(t, sender.calls)
}

func TestAlertPublisher_Dispatch_Errors(t *testing.T) {
	t.Run("lookup failure", func(t *testing.T) {
		sender := &mockSQSSender{}
		lookup := &stubLookup{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)}
		p, err := NewAlertPublisher(sender, "q", lookup, 0, nil, nil)
		require.NoError(t, err)

		err = p.Dispatch(context.Background(), "b5", "t1", alertsFor("t1", 2))
		assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
		assert.Empty(t, sender.calls)
	})

	t.Run("send failure", func(t *testing.T) {
		p, sender := newPublisher(t, "q", 0)
		sender.returnErr = errors.New("throttled")

		err := p.Dispatch(context.Background(), "b6", "t1", alertsFor("t1", 2))
		assert.ErrorIs(t, err, sender.returnErr)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		p, sender := newPublisher(t, "q", 0)
		assert.NoError(t, p.Dispatch(context.Background(), "b7", "t1", nil))
		assert.Empty(t, sender.calls)
	})
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope("not-base64!", EncodingZstdBase64)
	assert.Error(t, err)

	_, err = DecodeEnvelope("{", "")
	assert.Error(t, err)
}
