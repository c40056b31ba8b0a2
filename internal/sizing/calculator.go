// Package sizing computes order quantity and leverage under a fixed-margin,
// fixed-max-loss policy.
package sizing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

// ErrInfeasible means the computed quantity cannot satisfy the exchange
// minimums (or the stop distance is zero). The signal is dropped.
var ErrInfeasible = errors.New("sizing: trade not feasible")

// InstrumentSource resolves quantization rules for a symbol.
type InstrumentSource interface {
	Get(ctx context.Context, symbol string) (bybit.InstrumentInfo, error)
}

// Trade is the sized result for one signal.
type Trade struct {
	Qty      float64 // quantized to the instrument's qty step
	Leverage float64 // capped by instrument and policy limits, 2 decimals
	Margin   float64
	MaxLoss  float64
}

// Params holds the fixed risk budgets.
type Params struct {
	MaxLossBudget float64 // currency units risked per trade
	MarginBudget  float64 // currency units of margin per trade
	MaxLeverage   float64 // policy leverage cap
}

// Calculator derives trade size from a signal and instrument metadata.
// Size is deterministic for a given instrument snapshot.
type Calculator struct {
	instruments InstrumentSource
	params      Params
}

func NewCalculator(instruments InstrumentSource, params Params) *Calculator {
	return &Calculator{instruments: instruments, params: params}
}

// Size computes quantity and leverage for an entry/stop pair.
func (c *Calculator) Size(ctx context.Context, symbol string, entry, stopLoss float64) (Trade, error) {
	info, err := c.instruments.Get(ctx, symbol)
	if err != nil {
		return Trade{}, fmt.Errorf("sizing: instrument info for %s: %w", symbol, err)
	}

	slDistance := math.Abs(entry - stopLoss)
	if slDistance <= 0 {
		return Trade{}, fmt.Errorf("%w: zero stop distance", ErrInfeasible)
	}

	rawQty := c.params.MaxLossBudget / slDistance
	qty := QuantizeStep(rawQty, info.QtyStep)
	if info.MaxOrderQty > 0 {
		qty = math.Min(qty, info.MaxOrderQty)
	}
	if qty < info.MinQty {
		return Trade{}, fmt.Errorf("%w: qty %v below min %v", ErrInfeasible, qty, info.MinQty)
	}

	notional := qty * entry
	if notional < info.MinNotional {
		return Trade{}, fmt.Errorf("%w: notional %.4f below min %v", ErrInfeasible, notional, info.MinNotional)
	}

	rawLeverage := notional / c.params.MarginBudget
	leverage := math.Min(rawLeverage, math.Min(info.MaxLeverage, c.params.MaxLeverage))
	leverage = math.Max(1, math.Round(leverage*100)/100)

	// The budgeted margin must cover the notional at the chosen leverage;
	// shrink the quantity when the cap bites.
	maxNotional := c.params.MarginBudget * leverage
	if notional > maxNotional {
		qty = QuantizeStep(maxNotional/entry, info.QtyStep)
		if qty < info.MinQty {
			return Trade{}, fmt.Errorf("%w: qty %v below min %v after margin cap", ErrInfeasible, qty, info.MinQty)
		}
		notional = qty * entry
	}

	return Trade{
		Qty:      qty,
		Leverage: leverage,
		Margin:   math.Round(notional/leverage*100) / 100,
		MaxLoss:  math.Round(qty*slDistance*100) / 100,
	}, nil
}

// QuantizeStep truncates qty down to a multiple of step, toward zero, keeping
// the step's decimal precision exact.
func QuantizeStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	s := decimal.NewFromFloat(step)
	steps := decimal.NewFromFloat(qty).Div(s).IntPart()
	out, _ := decimal.New(steps, 0).Mul(s).Float64()
	return out
}
