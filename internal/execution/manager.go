// Package execution turns a parsed signal plus a sized trade into live
// exchange state: leverage, a market entry with its initial stop, and the
// partial take-profit ladder.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/internal/notify"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/internal/sizing"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

// Exchange is the slice of the trading client the manager needs.
type Exchange interface {
	SetLeverage(ctx context.Context, symbol string, leverage float64) error
	PlaceOrder(ctx context.Context, p bybit.OrderParams) (orderID string, err error)
	SetTradingStop(ctx context.Context, p bybit.TradingStopParams) error
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
}

// Books receives open/reject notifications for capital bookkeeping.
type Books interface {
	OnPositionOpened(symbol string, margin float64)
	OnOrderRejected(symbol string)
}

// Journal persists placed orders. Errors are logged, never fatal.
type Journal interface {
	RecordOrder(ctx context.Context, o PlacedOrder) error
}

// PlacedOrder is the journal record for one entry order.
type PlacedOrder struct {
	Symbol   string
	Side     string
	Qty      float64
	Entry    float64
	StopLoss float64
	Leverage float64
	Margin   float64
	OrderID  string
	LinkID   string
	PlacedAt time.Time
}

// Manager opens positions. It is driven only from the dispatcher goroutine.
type Manager struct {
	exchange    Exchange
	instruments sizing.InstrumentSource
	engine      *cascade.Engine
	books       Books
	journal     Journal
	notifier    notify.Notifier

	now func() time.Time
}

func NewManager(exchange Exchange, instruments sizing.InstrumentSource, engine *cascade.Engine, books Books, journal Journal, notifier notify.Notifier) *Manager {
	return &Manager{
		exchange:    exchange,
		instruments: instruments,
		engine:      engine,
		books:       books,
		journal:     journal,
		notifier:    notifier,
		now:         time.Now,
	}
}

// IsPositionOpen queries the exchange for a live position on the symbol. Used
// as the second layer of the duplicate guard behind the local store.
func (m *Manager) IsPositionOpen(ctx context.Context, symbol string) (bool, error) {
	positions, err := m.exchange.GetPositions(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("query position %s: %w", symbol, err)
	}
	for _, p := range positions {
		if p.Size > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Open places the entry order and registers its take-profit ladder. The entry
// carries the full stop-loss; each target gets a Partial-mode trigger with an
// order-link ID encoding its tranche index. A failed trigger registration is
// reported and skipped, the entry stands.
func (m *Manager) Open(ctx context.Context, intent signal.Intent, trade sizing.Trade) error {
	if err := m.exchange.SetLeverage(ctx, intent.Symbol, trade.Leverage); err != nil {
		if !errors.Is(err, bybit.ErrLeverageNotModified) {
			return fmt.Errorf("set leverage %s x%v: %w", intent.Symbol, trade.Leverage, err)
		}
	}

	base := uuid.NewString()
	orderID, err := m.exchange.PlaceOrder(ctx, bybit.OrderParams{
		Symbol:      intent.Symbol,
		Side:        string(intent.Side),
		OrderType:   "Market",
		Qty:         trade.Qty,
		StopLoss:    intent.StopLoss,
		OrderLinkID: base,
	})
	if err != nil {
		m.books.OnOrderRejected(intent.Symbol)
		return fmt.Errorf("place order %s: %w", intent.Symbol, err)
	}

	info, infoErr := m.instruments.Get(ctx, intent.Symbol)
	qtyStep := 0.0
	if infoErr == nil {
		qtyStep = info.QtyStep
	} else {
		log.Printf("execution: %s instrument lookup failed, TP sizes unquantized: %v", intent.Symbol, infoErr)
	}

	// Tranche sizes are split in decimal so 6 * 0.30 stays 1.8 instead of
	// landing a full quantization step short, and every tranche including the
	// remainder is snapped to the instrument's qty step before submission.
	splits := TpSplits(len(intent.Targets))
	totalQty := decimal.NewFromFloat(trade.Qty)
	remaining := totalQty
	for i, target := range intent.Targets {
		tranche := remaining
		if i < len(intent.Targets)-1 {
			tranche = totalQty.Mul(decimal.NewFromFloat(splits[i]))
		}
		tpQty, _ := tranche.Float64()
		if qtyStep > 0 {
			tpQty = sizing.QuantizeStep(tpQty, qtyStep)
		}
		if tpQty <= 0 {
			continue
		}
		err := m.exchange.SetTradingStop(ctx, bybit.TradingStopParams{
			Symbol:     intent.Symbol,
			TakeProfit: target,
			TpSize:     tpQty,
			TpslMode:   "Partial",
			TpLinkID:   cascade.TpLinkID(base, i+1),
		})
		if err != nil {
			log.Printf("execution: %s TP%d registration failed: %v", intent.Symbol, i+1, err)
			m.notifier.Notify(fmt.Sprintf("%s: failed to register TP%d at %v, manual check required: %v", intent.Symbol, i+1, target, err))
			continue
		}
		remaining = remaining.Sub(decimal.NewFromFloat(tpQty))
	}

	openedAt := m.now()
	m.engine.Register(&cascade.Position{
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Entry:    intent.Entry,
		StopLoss: intent.StopLoss,
		Targets:  append([]float64(nil), intent.Targets...),
		Qty:      trade.Qty,
		Margin:   trade.Margin,
		LinkID:   base,
		OpenedAt: openedAt,
	})
	m.books.OnPositionOpened(intent.Symbol, trade.Margin)

	if m.journal != nil {
		err := m.journal.RecordOrder(ctx, PlacedOrder{
			Symbol:   intent.Symbol,
			Side:     string(intent.Side),
			Qty:      trade.Qty,
			Entry:    intent.Entry,
			StopLoss: intent.StopLoss,
			Leverage: trade.Leverage,
			Margin:   trade.Margin,
			OrderID:  orderID,
			LinkID:   base,
			PlacedAt: openedAt,
		})
		if err != nil {
			log.Printf("execution: journal order for %s failed: %v", intent.Symbol, err)
		}
	}

	m.notifier.Notify(notify.FormatOrderPlaced(intent.Symbol, string(intent.Side),
		intent.Entry, trade.Qty, intent.StopLoss, trade.Leverage, intent.Targets, splits))
	return nil
}

// TpSplits returns the size fraction for each take-profit tranche. Three or
// more targets use 30/45/remainder, two use an even split, one takes the
// whole position.
func TpSplits(targets int) []float64 {
	switch {
	case targets <= 0:
		return nil
	case targets == 1:
		return []float64{1}
	case targets == 2:
		return []float64{0.5, 0.5}
	default:
		splits := make([]float64, targets)
		splits[0] = 0.30
		splits[1] = 0.45
		rest := 0.25 / float64(targets-2)
		for i := 2; i < targets; i++ {
			splits[i] = rest
		}
		return splits
	}
}
