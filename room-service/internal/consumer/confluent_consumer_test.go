package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleMovieUpdated(ctx context.Context, event *MovieUpdatedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestProcessMessage(t *testing.T) {
	h := new(mockHandler)
	cc := &ConfluentConsumer{handler: h}

	h.On("HandleMovieUpdated", mock.Anything, mock.MatchedBy(func(e *MovieUpdatedEvent) bool {
		return e.MovieID == "m-1" && e.Status == "ready" && e.HLSPath == "m-1/master.m3u8"
	})).Return(nil).Once()

	cc.processMessage(context.Background(), &kafka.Message{
		Value: []byte(`{"movie_id":"m-1","status":"ready","hls_path":"m-1/master.m3u8","timestamp":1700000000000}`),
	})
	h.AssertExpectations(t)
}

func TestProcessMessage_SkipsBadEvents(t *testing.T) {
	h := new(mockHandler)
	cc := &ConfluentConsumer{handler: h}

	cc.processMessage(context.Background(), &kafka.Message{Value: []byte(`not json`)})
	cc.processMessage(context.Background(), &kafka.Message{Value: []byte(`{"status":"ready"}`)})

	h.AssertNotCalled(t, "HandleMovieUpdated", mock.Anything, mock.Anything)
}

func TestProcessMessage_HandlerErrorIsSwallowed(t *testing.T) {
	h := new(mockHandler)
	cc := &ConfluentConsumer{handler: h}
	h.On("HandleMovieUpdated", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	assert.NotPanics(t, func() {
		cc.processMessage(context.Background(), &kafka.Message{Value: []byte(`{"movie_id":"m-2"}`)})
	})
	h.AssertExpectations(t)
}
