// Package classify maps raw exchange order updates onto a closed set of
// position lifecycle events.
package classify

import (
	"strconv"

	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

// Kind tags one lifecycle event.
type Kind string

const (
	KindNewOrderFilled Kind = "new_order_filled"
	KindOrderCancelled Kind = "order_cancelled"
	KindPositionClosed Kind = "position_closed"
	KindStopTriggered  Kind = "stop_triggered"
	KindStopCreated    Kind = "stop_created"
	KindRejected       Kind = "rejected"
	KindOther          Kind = "other"
)

// Event is one classified order update with its derived numeric fields. The
// raw record is preserved for display; unrecognized stop order types pass
// through verbatim rather than failing.
type Event struct {
	Kind         Kind
	Symbol       string
	Qty          float64
	Price        float64
	AvgPrice     float64
	TriggerPrice float64
	ClosedPnl    float64
	TakeProfit   float64
	StopLoss     float64
	Raw          bybit.OrderUpdate
}

// Classify assigns exactly one lifecycle kind to a raw order update. It is
// total: any well-formed record maps to a kind, defaulting to Other.
func Classify(u bybit.OrderUpdate) Event {
	ev := Event{
		Kind:         kindOf(u),
		Symbol:       u.Symbol,
		Qty:          toFloat(u.Qty),
		Price:        toFloat(u.Price),
		AvgPrice:     toFloat(u.AvgPrice),
		TriggerPrice: toFloat(u.TriggerPrice),
		ClosedPnl:    toFloat(u.ClosedPnl),
		TakeProfit:   toFloat(u.TakeProfit),
		StopLoss:     toFloat(u.StopLoss),
		Raw:          u,
	}
	return ev
}

func kindOf(u bybit.OrderUpdate) Kind {
	switch u.OrderStatus {
	case bybit.StatusCancelled, bybit.StatusDeactivated:
		return KindOrderCancelled
	case bybit.StatusFilled:
		if u.ReduceOnly {
			// Only the TP/SL variants stay in the cascade; any other
			// reduce-only fill (TrailingStop, manual close) flattens the
			// position outright.
			if isTpSl(u.StopOrderType) {
				return KindStopTriggered
			}
			return KindPositionClosed
		}
		if isTpSl(u.StopOrderType) {
			// Rare: a stop order filled without the reduce-only flag.
			return KindStopTriggered
		}
		return KindNewOrderFilled
	case bybit.StatusUntriggered:
		if u.StopOrderType != "" {
			return KindStopCreated
		}
	case bybit.StatusRejected:
		return KindRejected
	}
	return KindOther
}

func isTpSl(t string) bool {
	switch t {
	case bybit.StopTypeTakeProfit, bybit.StopTypePartialTakeProfit,
		bybit.StopTypeStopLoss, bybit.StopTypePartialStopLoss:
		return true
	}
	return false
}

// IsTakeProfit reports whether the event's stop order type is a TP variant.
func (e Event) IsTakeProfit() bool {
	t := e.Raw.StopOrderType
	return t == bybit.StopTypeTakeProfit || t == bybit.StopTypePartialTakeProfit
}

// IsStopLoss reports whether the event's stop order type is an SL variant.
func (e Event) IsStopLoss() bool {
	t := e.Raw.StopOrderType
	return t == bybit.StopTypeStopLoss || t == bybit.StopTypePartialStopLoss
}

// ClosesPosition reports whether a triggered stop flattened the position.
func (e Event) ClosesPosition() bool {
	return e.Raw.CloseOnTrigger && e.Raw.ReduceOnly
}

func toFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
