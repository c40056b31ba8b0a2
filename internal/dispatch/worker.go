package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/internal/classify"
	"github.com/rezamoosavidweb/bot-trade/internal/metrics"
	"github.com/rezamoosavidweb/bot-trade/internal/notify"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/internal/sizing"
)

// Opener places entry orders and answers live duplicate checks.
type Opener interface {
	IsPositionOpen(ctx context.Context, symbol string) (bool, error)
	Open(ctx context.Context, intent signal.Intent, trade sizing.Trade) error
}

// Sizer computes the trade for a parsed signal.
type Sizer interface {
	Size(ctx context.Context, symbol string, entry, stopLoss float64) (sizing.Trade, error)
}

// Worker is the queue's single consumer. It routes signal texts through
// parse, duplicate guard, sizing and execution, and stream events through
// the cascade engine.
type Worker struct {
	store    *cascade.Store
	engine   *cascade.Engine
	sizer    Sizer
	opener   Opener
	notifier notify.Notifier
}

func NewWorker(store *cascade.Store, engine *cascade.Engine, sizer Sizer, opener Opener, notifier notify.Notifier) *Worker {
	return &Worker{
		store:    store,
		engine:   engine,
		sizer:    sizer,
		opener:   opener,
		notifier: notifier,
	}
}

// Handle processes one queue item to completion. Failures are reported and
// swallowed; the loop must keep running.
func (w *Worker) Handle(ctx context.Context, item Item) {
	switch {
	case item.Signal != nil:
		w.handleSignal(ctx, *item.Signal)
	case item.Event != nil:
		w.handleEvent(ctx, *item.Event)
	}
}

func (w *Worker) handleSignal(ctx context.Context, s Signal) {
	intent, err := signal.Parse(s.Text)
	switch {
	case errors.Is(err, signal.ErrNotSignal):
		metrics.SignalsTotal.WithLabelValues("not_signal").Inc()
		return
	case err != nil:
		metrics.SignalsTotal.WithLabelValues("invalid").Inc()
		log.Printf("dispatch: unparseable signal dropped: %v", err)
		return
	}
	metrics.SignalsTotal.WithLabelValues("parsed").Inc()

	// Duplicate guard: local store first, then a live position query in case
	// the store and the exchange have drifted.
	if w.store.Has(intent.Symbol) {
		w.duplicate(intent.Symbol)
		return
	}
	open, err := w.opener.IsPositionOpen(ctx, intent.Symbol)
	if err != nil {
		log.Printf("dispatch: %s live position check failed: %v", intent.Symbol, err)
		w.notifier.Notify(fmt.Sprintf("%s: signal dropped, could not verify position state: %v", intent.Symbol, err))
		return
	}
	if open {
		w.duplicate(intent.Symbol)
		return
	}

	trade, err := w.sizer.Size(ctx, intent.Symbol, intent.Entry, intent.StopLoss)
	if err != nil {
		if errors.Is(err, sizing.ErrInfeasible) {
			metrics.SignalsTotal.WithLabelValues("infeasible").Inc()
			log.Printf("dispatch: %s signal dropped: %v", intent.Symbol, err)
			return
		}
		log.Printf("dispatch: %s sizing failed: %v", intent.Symbol, err)
		w.notifier.Notify(fmt.Sprintf("%s: signal dropped, sizing failed: %v", intent.Symbol, err))
		return
	}

	if err := w.opener.Open(ctx, intent, trade); err != nil {
		metrics.OrderFailures.Inc()
		log.Printf("dispatch: %s open failed: %v", intent.Symbol, err)
		w.notifier.Notify(fmt.Sprintf("%s: order failed: %v", intent.Symbol, err))
		return
	}
	metrics.OrdersTotal.WithLabelValues(string(intent.Side)).Inc()
}

func (w *Worker) duplicate(symbol string) {
	metrics.SignalsTotal.WithLabelValues("duplicate").Inc()
	w.notifier.Notify(fmt.Sprintf("%s: already in position, signal ignored", symbol))
}

func (w *Worker) handleEvent(ctx context.Context, ev classify.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case classify.KindOrderCancelled, classify.KindStopCreated, classify.KindRejected:
		// Informational. The cascade only cares about fills and closes.
		w.notifier.Notify(notify.FormatEvent(ev))
	case classify.KindNewOrderFilled, classify.KindStopTriggered, classify.KindPositionClosed:
		// The cascade reports closes of tracked positions with the realized
		// PnL itself; a close on an untracked symbol must still reach the
		// operator here.
		if ev.Kind != classify.KindPositionClosed || !w.store.Has(ev.Symbol) {
			w.notifier.Notify(notify.FormatEvent(ev))
		}
		w.engine.HandleEvent(ctx, ev)
	}
}
