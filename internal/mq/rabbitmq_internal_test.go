package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func TestSettle(t *testing.T) {
	failing := func(context.Context, Message) error { return errors.New("handler failed") }

	tests := []struct {
		name        string
		redelivered bool
		handler     Handler
		wantAck     int
		wantNack    int
		wantRequeue bool
	}{
		{name: "success acks", handler: func(context.Context, Message) error { return nil }, wantAck: 1},
		{name: "first failure requeues", handler: failing, wantNack: 1, wantRequeue: true},
		{name: "repeat failure drops", redelivered: true, handler: failing, wantNack: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecorder{}
			var got Message
			handler := func(ctx context.Context, msg Message) error {
				got = msg
				return tt.handler(ctx, msg)
			}

			delivery := amqp.Delivery{
				Acknowledger: rec,
				DeliveryTag:  7,
				MessageId:    "m-1",
				Redelivered:  tt.redelivered,
				Headers:      amqp.Table{AttrEvent: "participant:joined", "attempt": int32(2)},
				Body:         []byte(`{"contest_id":1}`),
			}
			require.NoError(t, settle(context.Background(), delivery, handler))

			assert.Equal(t, tt.wantAck, rec.acked)
			assert.Equal(t, tt.wantNack, rec.nacked)
			assert.Equal(t, tt.wantRequeue, rec.requeue)

			assert.Equal(t, "m-1", got.ID)
			assert.Equal(t, []byte(`{"contest_id":1}`), got.Data)
			assert.Equal(t, map[string]string{AttrEvent: "participant:joined", "attempt": "2"}, got.Attributes)
		})
	}
}
