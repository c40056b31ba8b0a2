package main

import (
	"context"
	"time"

	"github.com/rezamoosavidweb/bot-trade/internal/execution"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/pkg/db"
)

// orderJournal adapts the SQLite journal to the execution manager.
type orderJournal struct {
	journal *db.Journal
}

func (j orderJournal) RecordOrder(ctx context.Context, o execution.PlacedOrder) error {
	return j.journal.InsertOrder(ctx, db.OrderRecord{
		LinkID:   o.LinkID,
		OrderID:  o.OrderID,
		Symbol:   o.Symbol,
		Side:     o.Side,
		Qty:      o.Qty,
		Entry:    o.Entry,
		StopLoss: o.StopLoss,
		Leverage: o.Leverage,
		Margin:   o.Margin,
		PlacedAt: o.PlacedAt,
	})
}

// closeJournal adapts the SQLite journal to the cascade engine.
type closeJournal struct {
	journal *db.Journal
}

func (j closeJournal) RecordClose(ctx context.Context, symbol, side string, pnl float64, closedAt time.Time) error {
	return j.journal.InsertClosedTrade(ctx, db.ClosedTrade{
		Symbol:   symbol,
		Side:     side,
		Pnl:      pnl,
		ClosedAt: closedAt,
	})
}

func sideOf(s string) signal.Side {
	if s == "Sell" {
		return signal.SideSell
	}
	return signal.SideBuy
}
