package events

import (
	"context"

	"github.com/debugmarathon/apiserver/internal/mq"
)

// EventParticipantJoined is emitted after a participant logs in.
const EventParticipantJoined = "participant:joined"

// ParticipantJoined is the payload of EventParticipantJoined.
type ParticipantJoined struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	ContestID     int    `json:"contest_id"`
}

// Publisher sends platform events through a message queue.
type Publisher struct {
	mq *mq.MQ
}

func NewPublisher(queue *mq.MQ) *Publisher {
	return &Publisher{mq: queue}
}

// ParticipantJoined announces a participant entering the contest.
func (p *Publisher) ParticipantJoined(ctx context.Context, evt ParticipantJoined) error {
	_, err := p.mq.PublishEvent(ctx, EventParticipantJoined, evt)
	return err
}
