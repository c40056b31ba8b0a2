// Package dispatch funnels every mutating operation through one ordered
// queue with a single consumer, so no two operations for the same symbol can
// ever interleave.
package dispatch

import (
	"context"
	"log"
	"runtime/debug"
	"time"

	"github.com/rezamoosavidweb/bot-trade/internal/classify"
)

// Signal is an inbound raw message suspected to contain a trade instruction.
type Signal struct {
	Text       string
	ReceivedAt time.Time
}

// Item is one unit of work: exactly one of Signal or Event is set.
type Item struct {
	Signal *Signal
	Event  *classify.Event
}

// Handler processes one item to completion, including any exchange calls it
// triggers.
type Handler interface {
	Handle(ctx context.Context, item Item)
}

// Queue is the ordered channel both event sources feed into.
type Queue struct {
	items chan Item
}

func NewQueue(size int) *Queue {
	return &Queue{items: make(chan Item, size)}
}

// EnqueueSignal blocks if the queue is full; ordering matters more than
// producer latency here.
func (q *Queue) EnqueueSignal(text string, receivedAt time.Time) {
	q.items <- Item{Signal: &Signal{Text: text, ReceivedAt: receivedAt}}
}

func (q *Queue) EnqueueEvent(ev classify.Event) {
	q.items <- Item{Event: &ev}
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Drain consumes items until the context is cancelled. A panic or error in
// one item never stops the loop.
func (q *Queue) Drain(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			q.handleSafe(ctx, h, item)
		}
	}
}

func (q *Queue) handleSafe(ctx context.Context, h Handler, item Item) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: panic handling item: %v\n%s", r, debug.Stack())
		}
	}()
	h.Handle(ctx, item)
}
