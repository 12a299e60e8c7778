package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/debugmarathon/apiserver/internal/mq"
)

// Subscriber consumes messages from a named channel until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// TailRecord is one line written by Tail.
type TailRecord struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Raw   string          `json:"raw,omitempty"`
}

// Tail writes every message received on event to w as one JSON line. It
// returns nil once limit messages were written (when limit > 0) or ctx is
// done.
func Tail(ctx context.Context, sub Subscriber, event string, w io.Writer, limit int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		enc      = json.NewEncoder(w)
		written  int
		writeErr error
	)
	err := sub.Subscribe(ctx, event, func(_ context.Context, msg mq.Message) error {
		mu.Lock()
		defer mu.Unlock()

		if writeErr != nil || (limit > 0 && written >= limit) {
			return nil
		}

		rec := TailRecord{ID: msg.ID, Event: msg.Attributes[mq.AttrEvent]}
		if rec.Event == "" {
			rec.Event = event
		}
		if json.Valid(msg.Data) {
			rec.Data = msg.Data
		} else {
			rec.Raw = string(msg.Data)
		}

		if err := enc.Encode(rec); err != nil {
			writeErr = err
			cancel()
			return nil
		}
		written++
		if limit > 0 && written >= limit {
			cancel()
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		return writeErr
	}
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
