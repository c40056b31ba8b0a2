package execution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/internal/sizing"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

type fakeExchange struct {
	leverageErr error
	orderErr    error
	stopErrOn   int // 1-based SetTradingStop attempt that fails, 0 = never
	stopCalls   int

	leverageCalls []float64
	orders        []bybit.OrderParams
	stops         []bybit.TradingStopParams
	positions     []bybit.Position
	positionsErr  error
}

func (f *fakeExchange) SetLeverage(_ context.Context, _ string, lev float64) error {
	f.leverageCalls = append(f.leverageCalls, lev)
	return f.leverageErr
}

func (f *fakeExchange) PlaceOrder(_ context.Context, p bybit.OrderParams) (string, error) {
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.orders = append(f.orders, p)
	return "oid-1", nil
}

func (f *fakeExchange) SetTradingStop(_ context.Context, p bybit.TradingStopParams) error {
	f.stopCalls++
	if f.stopCalls == f.stopErrOn {
		return errors.New("trigger rejected")
	}
	f.stops = append(f.stops, p)
	return nil
}

func (f *fakeExchange) GetPositions(context.Context, string) ([]bybit.Position, error) {
	return f.positions, f.positionsErr
}

type staticInstruments struct{ info bybit.InstrumentInfo }

func (s staticInstruments) Get(context.Context, string) (bybit.InstrumentInfo, error) {
	return s.info, nil
}

type fakeNotifier struct{ msgs []string }

func (f *fakeNotifier) Notify(text string) { f.msgs = append(f.msgs, text) }

type fakeBooks struct {
	opened   map[string]float64
	rejected int
}

func (f *fakeBooks) OnPositionOpened(symbol string, margin float64) {
	if f.opened == nil {
		f.opened = make(map[string]float64)
	}
	f.opened[symbol] = margin
}

func (f *fakeBooks) OnOrderRejected(string) { f.rejected++ }

func (f *fakeBooks) OnPositionClosed(string, float64) {}

type fakeJournal struct{ orders []PlacedOrder }

func (f *fakeJournal) RecordOrder(_ context.Context, o PlacedOrder) error {
	f.orders = append(f.orders, o)
	return nil
}

func testManager(t *testing.T, ex *fakeExchange) (*Manager, *cascade.Store, *fakeBooks, *fakeJournal, *fakeNotifier) {
	t.Helper()
	store := cascade.NewStore()
	notifier := &fakeNotifier{}
	books := &fakeBooks{}
	journal := &fakeJournal{}
	engine := cascade.NewEngine(store, ex, notifier, books, nil, cascade.DefaultParams())
	instruments := staticInstruments{info: bybit.InstrumentInfo{
		Symbol: "BTCUSDT", MinQty: 0.01, QtyStep: 0.01, MaxOrderQty: 1000, MinNotional: 5, MaxLeverage: 20,
	}}
	m := NewManager(ex, instruments, engine, books, journal, notifier)
	return m, store, books, journal, notifier
}

func btcIntent() signal.Intent {
	return signal.Intent{
		Symbol:   "BTCUSDT",
		Side:     signal.SideBuy,
		Entry:    100,
		StopLoss: 95,
		Targets:  []float64{110, 120, 130},
	}
}

func btcTrade() sizing.Trade {
	return sizing.Trade{Qty: 6, Leverage: 2, Margin: 300, MaxLoss: 30}
}

func TestOpenPlacesEntryAndTakeProfitLadder(t *testing.T) {
	ex := &fakeExchange{}
	m, store, books, journal, _ := testManager(t, ex)

	if err := m.Open(context.Background(), btcIntent(), btcTrade()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(ex.leverageCalls) != 1 || ex.leverageCalls[0] != 2 {
		t.Fatalf("leverage calls = %v, want [2]", ex.leverageCalls)
	}
	if len(ex.orders) != 1 {
		t.Fatalf("orders placed = %d, want 1", len(ex.orders))
	}
	order := ex.orders[0]
	if order.OrderType != "Market" || order.Side != "Buy" || order.Qty != 6 || order.StopLoss != 95 {
		t.Fatalf("entry order = %+v", order)
	}
	if order.OrderLinkID == "" {
		t.Fatal("entry order must carry a link ID")
	}

	if len(ex.stops) != 3 {
		t.Fatalf("trading stops = %d, want 3", len(ex.stops))
	}
	wantQty := []float64{1.8, 2.7, 1.5}
	wantTp := []float64{110, 120, 130}
	for i, s := range ex.stops {
		if s.TpslMode != "Partial" {
			t.Errorf("stop %d mode = %q, want Partial", i, s.TpslMode)
		}
		if !closeTo(s.TpSize, wantQty[i]) || s.TakeProfit != wantTp[i] {
			t.Errorf("stop %d = tp %v size %v, want tp %v size %v", i, s.TakeProfit, s.TpSize, wantTp[i], wantQty[i])
		}
		if want := cascade.TpLinkID(order.OrderLinkID, i+1); s.TpLinkID != want {
			t.Errorf("stop %d link ID = %q, want %q", i, s.TpLinkID, want)
		}
	}

	p, ok := store.Get("BTCUSDT")
	if !ok {
		t.Fatal("position not registered")
	}
	if p.State != cascade.StateOpened || p.RemainingQty != 6 || p.LinkID != order.OrderLinkID {
		t.Fatalf("registered position = %+v", p)
	}
	if books.opened["BTCUSDT"] != 300 {
		t.Fatalf("booked margin = %v, want 300", books.opened["BTCUSDT"])
	}
	if len(journal.orders) != 1 || journal.orders[0].OrderID != "oid-1" {
		t.Fatalf("journal orders = %+v", journal.orders)
	}
}

func TestOpenQuantizesEveryTrancheIncludingRemainder(t *testing.T) {
	ex := &fakeExchange{}
	m, _, _, _, _ := testManager(t, ex)
	trade := btcTrade()
	trade.Qty = 0.7

	if err := m.Open(context.Background(), btcIntent(), trade); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// 0.7 split 30/45/rest with a 0.01 step: 0.21, 0.31 (0.315 truncated),
	// then the leftover 0.18, each an exact step multiple.
	wantQty := []float64{0.21, 0.31, 0.18}
	if len(ex.stops) != 3 {
		t.Fatalf("trading stops = %d, want 3", len(ex.stops))
	}
	for i, s := range ex.stops {
		if !closeTo(s.TpSize, wantQty[i]) {
			t.Errorf("stop %d size = %v, want %v", i, s.TpSize, wantQty[i])
		}
		if got := sizing.QuantizeStep(s.TpSize, 0.01); !closeTo(got, s.TpSize) {
			t.Errorf("stop %d size %v is not a qty step multiple", i, s.TpSize)
		}
	}
}

func TestOpenTreatsLeverageNotModifiedAsSuccess(t *testing.T) {
	ex := &fakeExchange{leverageErr: bybit.ErrLeverageNotModified}
	m, _, _, _, _ := testManager(t, ex)
	if err := m.Open(context.Background(), btcIntent(), btcTrade()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(ex.orders) != 1 {
		t.Fatalf("orders placed = %d, want 1", len(ex.orders))
	}
}

func TestOpenAbortsOnLeverageError(t *testing.T) {
	ex := &fakeExchange{leverageErr: errors.New("api down")}
	m, store, _, _, _ := testManager(t, ex)
	if err := m.Open(context.Background(), btcIntent(), btcTrade()); err == nil {
		t.Fatal("expected error")
	}
	if len(ex.orders) != 0 {
		t.Fatal("no order may be placed when leverage setup fails")
	}
	if store.Has("BTCUSDT") {
		t.Fatal("no position may be registered")
	}
}

func TestOpenBooksRejectionOnOrderError(t *testing.T) {
	ex := &fakeExchange{orderErr: errors.New("insufficient balance")}
	m, store, books, _, _ := testManager(t, ex)
	if err := m.Open(context.Background(), btcIntent(), btcTrade()); err == nil {
		t.Fatal("expected error")
	}
	if books.rejected != 1 {
		t.Fatalf("rejections booked = %d, want 1", books.rejected)
	}
	if store.Has("BTCUSDT") || len(ex.stops) != 0 {
		t.Fatal("no position state may be created on a rejected entry")
	}
}

func TestOpenContinuesWhenOneTriggerFails(t *testing.T) {
	ex := &fakeExchange{stopErrOn: 2}
	m, store, _, _, notifier := testManager(t, ex)
	if err := m.Open(context.Background(), btcIntent(), btcTrade()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(ex.stops) != 2 {
		t.Fatalf("trading stops = %d, want 2 (TP2 failed)", len(ex.stops))
	}
	if !store.Has("BTCUSDT") {
		t.Fatal("position must still be registered")
	}
	found := false
	for _, msg := range notifier.msgs {
		if strings.Contains(msg, "TP2") && strings.Contains(msg, "manual check") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TP2 failure notification, got %v", notifier.msgs)
	}
}

func TestOpenTwoTargetsSplitsEvenly(t *testing.T) {
	ex := &fakeExchange{}
	m, _, _, _, _ := testManager(t, ex)
	intent := btcIntent()
	intent.Targets = []float64{110, 120}
	if err := m.Open(context.Background(), intent, btcTrade()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(ex.stops) != 2 || !closeTo(ex.stops[0].TpSize, 3) || !closeTo(ex.stops[1].TpSize, 3) {
		t.Fatalf("two-target stops = %+v, want 3/3", ex.stops)
	}
}

func TestIsPositionOpen(t *testing.T) {
	ex := &fakeExchange{positions: []bybit.Position{{Symbol: "BTCUSDT", Size: 0.5}}}
	m, _, _, _, _ := testManager(t, ex)
	open, err := m.IsPositionOpen(context.Background(), "BTCUSDT")
	if err != nil || !open {
		t.Fatalf("IsPositionOpen = %v, %v; want true, nil", open, err)
	}

	ex.positions = []bybit.Position{{Symbol: "BTCUSDT", Size: 0}}
	open, err = m.IsPositionOpen(context.Background(), "BTCUSDT")
	if err != nil || open {
		t.Fatalf("IsPositionOpen = %v, %v; want false, nil", open, err)
	}
}

func TestTpSplits(t *testing.T) {
	tests := []struct {
		targets int
		want    []float64
	}{
		{0, nil},
		{1, []float64{1}},
		{2, []float64{0.5, 0.5}},
		{3, []float64{0.30, 0.45, 0.25}},
		{4, []float64{0.30, 0.45, 0.125, 0.125}},
	}
	for _, tt := range tests {
		got := TpSplits(tt.targets)
		if len(got) != len(tt.want) {
			t.Errorf("TpSplits(%d) = %v, want %v", tt.targets, got, tt.want)
			continue
		}
		for i := range got {
			if !closeTo(got[i], tt.want[i]) {
				t.Errorf("TpSplits(%d)[%d] = %v, want %v", tt.targets, i, got[i], tt.want[i])
			}
		}
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
