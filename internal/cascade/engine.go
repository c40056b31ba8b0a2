package cascade

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/rezamoosavidweb/bot-trade/internal/classify"
	"github.com/rezamoosavidweb/bot-trade/internal/metrics"
	"github.com/rezamoosavidweb/bot-trade/internal/notify"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

// Trader is the slice of the exchange client the engine needs.
type Trader interface {
	SetTradingStop(ctx context.Context, p bybit.TradingStopParams) error
}

// Books receives close notifications for capital bookkeeping.
type Books interface {
	OnPositionClosed(symbol string, pnl float64)
}

// Journal persists closed trades. Errors are logged, never fatal.
type Journal interface {
	RecordClose(ctx context.Context, symbol string, side string, pnl float64, closedAt time.Time) error
}

// Params tunes the escalation behaviour.
type Params struct {
	DwellTime        time.Duration // minimum age before any stop escalation
	FeeBuffer        float64       // relative buffer applied to escalated stops
	TriggerTolerance float64       // relative tolerance for trigger-price matching
}

func DefaultParams() Params {
	return Params{
		DwellTime:        30 * time.Minute,
		FeeBuffer:        0.0011,
		TriggerTolerance: 0.0001,
	}
}

// Engine applies classified stream events to the position store. It must only
// be driven from the dispatcher goroutine.
type Engine struct {
	store    *Store
	trader   Trader
	notifier notify.Notifier
	books    Books
	journal  Journal
	params   Params

	now func() time.Time
}

func NewEngine(store *Store, trader Trader, notifier notify.Notifier, books Books, journal Journal, params Params) *Engine {
	return &Engine{
		store:    store,
		trader:   trader,
		notifier: notifier,
		books:    books,
		journal:  journal,
		params:   params,
		now:      time.Now,
	}
}

// Register starts tracking a freshly opened position.
func (e *Engine) Register(p *Position) {
	p.State = StateOpened
	p.Escalation = EscNone
	p.RemainingQty = p.Qty
	e.store.Put(p)
	metrics.OpenPositions.Set(float64(e.store.Len()))
}

// HandleEvent advances the symbol's state machine for one classified event.
// Events for untracked symbols are ignored.
func (e *Engine) HandleEvent(ctx context.Context, ev classify.Event) {
	p, ok := e.store.Get(ev.Symbol)
	if !ok {
		return
	}

	switch ev.Kind {
	case classify.KindNewOrderFilled:
		// Refine the recorded entry with the actual fill price.
		if ev.AvgPrice > 0 && p.Escalation == EscNone {
			e.store.Update(p.Symbol, func(p *Position) { p.Entry = ev.AvgPrice })
		}
	case classify.KindStopTriggered:
		if ev.IsStopLoss() {
			e.close(ctx, p, ev)
			return
		}
		if ev.IsTakeProfit() {
			e.handleTakeProfit(ctx, p, ev)
		}
	case classify.KindPositionClosed:
		e.close(ctx, p, ev)
	}
}

func (e *Engine) handleTakeProfit(ctx context.Context, p *Position, ev classify.Event) {
	e.store.Update(p.Symbol, func(p *Position) {
		p.RealizedPnl += ev.ClosedPnl
		if ev.Qty > 0 {
			p.RemainingQty -= ev.Qty
			if p.RemainingQty < 0 {
				p.RemainingQty = 0
			}
		}
	})

	level, certain := e.tpLevel(p, ev)
	if !certain {
		e.notifier.Notify(fmt.Sprintf("%s: take profit fill at %v could not be matched to a target, assuming TP%d", p.Symbol, ev.TriggerPrice, level))
	}

	// Final target fill or no size left means the position is done.
	if level >= len(p.Targets) || p.RemainingQty <= 0 {
		e.close(ctx, p, ev)
		return
	}

	switch {
	case level == 1 && p.Escalation < EscAfterTp1:
		e.store.Update(p.Symbol, func(p *Position) { p.State = StateTp1Filled })
		e.escalate(ctx, p, EscAfterTp1, e.breakevenStop(p))
	case level == 2 && p.Escalation < EscAfterTp2:
		e.store.Update(p.Symbol, func(p *Position) { p.State = StateTp2Filled })
		e.escalate(ctx, p, EscAfterTp2, e.target2Stop(p))
	default:
		log.Printf("cascade: %s TP%d fill ignored at escalation %s", p.Symbol, level, p.Escalation)
	}
}

// escalate moves the protective stop for the remaining size. The dwell gate
// is measured from the original open. Exchange errors leave the new logical
// state in place; recovery is manual.
func (e *Engine) escalate(ctx context.Context, p *Position, to Level, stop float64) {
	age := e.now().Sub(p.OpenedAt)
	if age < e.params.DwellTime {
		metrics.EscalationsTotal.WithLabelValues(to.String(), "skipped").Inc()
		e.notifier.Notify(fmt.Sprintf("%s: stop escalation to %s skipped, position only %s old (minimum %s)",
			p.Symbol, to, age.Round(time.Second), e.params.DwellTime))
		return
	}

	e.store.Update(p.Symbol, func(p *Position) {
		p.Escalation = to
		p.StopLoss = stop
	})
	err := e.trader.SetTradingStop(ctx, bybit.TradingStopParams{
		Symbol:   p.Symbol,
		StopLoss: stop,
		TpslMode: "Full",
	})
	if err != nil {
		metrics.EscalationsTotal.WithLabelValues(to.String(), "failed").Inc()
		log.Printf("cascade: %s stop escalation to %v failed: %v", p.Symbol, stop, err)
		e.notifier.Notify(fmt.Sprintf("%s: failed to move stop loss to %v (%s), manual check required: %v", p.Symbol, stop, to, err))
		return
	}
	metrics.EscalationsTotal.WithLabelValues(to.String(), "moved").Inc()
	e.notifier.Notify(fmt.Sprintf("%s: stop loss moved to %v (%s)", p.Symbol, stop, to))
}

// breakevenStop is the entry price padded by the fee buffer in the position's
// favour, locking in fees once target 1 is banked.
func (e *Engine) breakevenStop(p *Position) float64 {
	if p.Side == signal.SideBuy {
		return p.Entry * (1 + e.params.FeeBuffer)
	}
	return p.Entry * (1 - e.params.FeeBuffer)
}

// target2Stop trails the stop just inside target 2 so the trigger stays on
// the valid side of the market.
func (e *Engine) target2Stop(p *Position) float64 {
	t2 := p.Targets[1]
	if p.Side == signal.SideBuy {
		return t2 * (1 - e.params.FeeBuffer)
	}
	return t2 * (1 + e.params.FeeBuffer)
}

func (e *Engine) close(ctx context.Context, p *Position, ev classify.Event) {
	e.store.Update(p.Symbol, func(p *Position) {
		p.RealizedPnl += closedPnlOnce(ev)
		p.State = StateClosed
	})
	e.store.Remove(p.Symbol)
	metrics.OpenPositions.Set(float64(e.store.Len()))

	if e.books != nil {
		e.books.OnPositionClosed(p.Symbol, p.RealizedPnl)
	}
	if e.journal != nil {
		if err := e.journal.RecordClose(ctx, p.Symbol, string(p.Side), p.RealizedPnl, e.now()); err != nil {
			log.Printf("cascade: journal close for %s failed: %v", p.Symbol, err)
		}
	}
	e.notifier.Notify(notify.FormatPositionClosed(ev, p.RealizedPnl))
}

// closedPnlOnce returns the event's PnL unless handleTakeProfit already
// accumulated it for this same event.
func closedPnlOnce(ev classify.Event) float64 {
	if ev.Kind == classify.KindStopTriggered && ev.IsTakeProfit() {
		return 0
	}
	return ev.ClosedPnl
}

// tpLevel identifies which take-profit tranche this fill belongs to. The
// order-link ID carries the authoritative index; trigger-price matching and
// the escalation heuristic are fallbacks.
func (e *Engine) tpLevel(p *Position, ev classify.Event) (level int, certain bool) {
	if n, ok := TpIndexFromLinkID(ev.Raw.OrderLinkID); ok {
		return n, true
	}
	if ev.TriggerPrice > 0 {
		for i, target := range p.Targets {
			if target <= 0 {
				continue
			}
			rel := (ev.TriggerPrice - target) / target
			if rel < 0 {
				rel = -rel
			}
			if rel <= e.params.TriggerTolerance {
				return i + 1, true
			}
		}
	}
	if p.Escalation == EscNone {
		return 1, false
	}
	return 2, false
}

// TpLinkID derives the order-link ID for one take-profit tranche from the
// entry order's base ID.
func TpLinkID(base string, index int) string {
	return fmt.Sprintf("%s-tp%d", base, index)
}

// TpIndexFromLinkID recovers the tranche index encoded by TpLinkID.
func TpIndexFromLinkID(linkID string) (int, bool) {
	i := strings.LastIndex(linkID, "-tp")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(linkID[i+len("-tp"):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
