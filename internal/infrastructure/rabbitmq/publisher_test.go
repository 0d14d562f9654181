package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Dispatch(t *testing.T) {
	ch := new(mockChannel)
	p := &Publisher{channel: ch, exchange: "auction.notifications", log: logger.NewNop()}

	n := &domain.Notification{ID: "n1", Kind: domain.NotifySellerSold, RecipientID: "shop-1", AuctionID: "a1"}

	ch.On("Publish", "auction.notifications", "notification.seller_sold", false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var got domain.Notification
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return msg.MessageId == "n1" &&
				msg.DeliveryMode == amqp.Persistent &&
				got.RecipientID == "shop-1"
		})).Return(nil).Once()

	require.NoError(t, p.Dispatch(context.Background(), n))
	ch.AssertExpectations(t)
}

func TestPublisher_DispatchError(t *testing.T) {
	ch := new(mockChannel)
	p := &Publisher{channel: ch, exchange: "x", log: logger.NewNop()}

	ch.On("Publish", "x", mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed"))

	err := p.Dispatch(context.Background(), &domain.Notification{ID: "n1", Kind: domain.NotifyWinner})
	assert.ErrorContains(t, err, "channel closed")
}

func TestPublisher_Close(t *testing.T) {
	ch := new(mockChannel)
	ch.On("Close").Return(nil).Once()

	p := &Publisher{channel: ch, log: logger.NewNop()}
	assert.NoError(t, p.Close())
	ch.AssertExpectations(t)
}
