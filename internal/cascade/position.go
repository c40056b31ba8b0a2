// Package cascade drives the per-position lifecycle: partial take-profit
// fills escalate the protective stop in stages until the position closes.
package cascade

import (
	"sync"
	"time"

	"github.com/rezamoosavidweb/bot-trade/internal/signal"
)

// State of a tracked position.
type State string

const (
	StateOpened    State = "opened"
	StateTp1Filled State = "tp1_filled"
	StateTp2Filled State = "tp2_filled"
	StateClosed    State = "closed"
)

// Level records how far the stop-loss has been escalated. It only advances.
type Level int

const (
	EscNone Level = iota
	EscAfterTp1
	EscAfterTp2
)

func (l Level) String() string {
	switch l {
	case EscAfterTp1:
		return "after_tp1"
	case EscAfterTp2:
		return "after_tp2"
	default:
		return "none"
	}
}

// Position is the tracked record for one open symbol.
type Position struct {
	Symbol       string      `json:"symbol"`
	Side         signal.Side `json:"side"`
	Entry        float64     `json:"entry"`
	StopLoss     float64     `json:"stopLoss"`
	Targets      []float64   `json:"targets"`
	Qty          float64     `json:"qty"`
	RemainingQty float64     `json:"remainingQty"`
	Margin       float64     `json:"margin"`
	LinkID       string      `json:"linkId"`
	OpenedAt     time.Time   `json:"openedAt"`
	State        State       `json:"state"`
	Escalation   Level       `json:"escalation"`
	RealizedPnl  float64     `json:"realizedPnl"`
}

// Store holds open positions by symbol. Only the dispatcher goroutine
// mutates, always through Update, so Snapshot consumers on other goroutines
// see consistent records.
type Store struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewStore() *Store {
	return &Store{positions: make(map[string]*Position)}
}

func (s *Store) Get(symbol string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

func (s *Store) Put(p *Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.Symbol] = p
}

func (s *Store) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
}

// Update mutates a tracked position under the write lock so Snapshot readers
// never observe a torn write. No-op for untracked symbols.
func (s *Store) Update(symbol string, fn func(*Position)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[symbol]; ok {
		fn(p)
	}
}

func (s *Store) Has(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[symbol]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Snapshot returns value copies for reporting surfaces.
func (s *Store) Snapshot() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		cp.Targets = append([]float64(nil), p.Targets...)
		out = append(out, cp)
	}
	return out
}
