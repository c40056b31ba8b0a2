// Package capital tracks margin reserved by open positions and the running
// realized performance of closed ones.
package capital

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of account bookkeeping.
type Stats struct {
	ReservedMargin float64   `json:"reservedMargin"`
	OpenPositions  int       `json:"openPositions"`
	TotalTrades    int       `json:"totalTrades"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	RealizedPnl    float64   `json:"realizedPnl"`
	RejectedOrders int       `json:"rejectedOrders"`
	Since          time.Time `json:"since"`
}

// WinRate returns wins over closed trades, 0 when nothing has closed.
func (s Stats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	reserved map[string]float64 // symbol -> margin held
	stats    Stats
}

func NewTracker() *Tracker {
	return &Tracker{
		reserved: make(map[string]float64),
		stats:    Stats{Since: time.Now()},
	}
}

// OnPositionOpened reserves margin under the symbol. Opening a symbol that is
// already reserved replaces the previous amount; the pipeline holds at most
// one position per symbol.
func (t *Tracker) OnPositionOpened(symbol string, margin float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved[symbol] = margin
}

// OnPositionClosed releases the symbol's margin and records the realized
// result. A zero PnL close counts as a loss; fees make true break-even rare
// and the original books treated flat closes the same way.
func (t *Tracker) OnPositionClosed(symbol string, pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reserved, symbol)
	t.stats.TotalTrades++
	t.stats.RealizedPnl += pnl
	if pnl > 0 {
		t.stats.Wins++
	} else {
		t.stats.Losses++
	}
}

// OnOrderRejected releases any margin held for the symbol without booking a
// trade.
func (t *Tracker) OnOrderRejected(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reserved, symbol)
	t.stats.RejectedOrders++
}

// IsReserved reports whether the symbol currently holds margin.
func (t *Tracker) IsReserved(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.reserved[symbol]
	return ok
}

// Snapshot returns current totals.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.OpenPositions = len(t.reserved)
	for _, m := range t.reserved {
		s.ReservedMargin += m
	}
	return s
}
