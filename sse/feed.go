package sse

import (
	"encoding/json"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/queue"
)

// Source is a hot stream the gateway can subscribe to. Both
// *hotstream.HotStream[T] and *hotstream.Pausable[T] satisfy it.
type Source[T any] interface {
	hotstream.Handle
	ConnectQueue(q *queue.Queue[T]) (*hotstream.Connection[T], error)
}

// Encoder turns an element into event data. It must not return data
// containing newlines.
type Encoder[T any] func(T) ([]byte, error)

// JSON encodes elements with encoding/json.
func JSON[T any]() Encoder[T] {
	return func(v T) ([]byte, error) { return json.Marshal(v) }
}

// Publish registers src with the gateway and feeds its elements to every
// event-stream client of that stream. The feed subscribes with a
// drop-oldest queue, so slow or absent clients never hold the stream back.
func Publish[T any](g *Gateway, src Source[T], encode Encoder[T]) error {
	if g == nil || src == nil {
		return errors.InvalidArgument("publish", "gateway and source must not be nil")
	}
	if encode == nil {
		encode = JSON[T]()
	}
	q, err := queue.New[T](g.cfg.FeedCapacity, queue.DropOldest)
	if err != nil {
		return err
	}
	if err := g.Register(src); err != nil {
		return err
	}
	conn, err := src.ConnectQueue(q)
	if err != nil {
		g.mu.Lock()
		delete(g.streams, src.Name())
		g.mu.Unlock()
		return err
	}

	name := src.Name()
	pattern := clientPattern(name, "*")
	log := g.log.WithFields(logger.Fields(logger.FieldStream, name, logger.FieldSubscriber, conn.ID()))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer conn.Disconnect()
		for {
			v, ok, err := q.Take(g.ctx)
			if err != nil {
				return
			}
			if !ok {
				// The stream stopped and the feed is drained.
				g.broadcastState(name, hotstream.Stopped, src.Err())
				log.Debug("Feed ended")
				return
			}
			data, err := encode(v)
			if err != nil {
				log.Warn("Element could not be encoded", logger.ErrorFields("encode", err))
				msg, _ := json.Marshal(map[string]string{"stream": name, "error": err.Error()})
				g.hub.BroadcastToPattern(pattern, Event{Type: EventTypeError, Data: msg})
				continue
			}
			g.hub.BroadcastToPattern(pattern, Event{Type: EventTypeElement, Data: data})
		}
	}()
	return nil
}
