package notify

import (
	"fmt"
	"strings"

	"github.com/rezamoosavidweb/bot-trade/internal/classify"
)

// Display labels for exchange enum fields. Unknown values pass through
// verbatim so new exchange variants degrade to raw strings, not failures.
var orderStatusLabels = map[string]string{
	"New":                     "order placed",
	"PartiallyFilled":         "partially filled",
	"Untriggered":             "conditional order created",
	"Rejected":                "order rejected",
	"PartiallyFilledCanceled": "partially filled then cancelled",
	"Filled":                  "order filled",
	"Cancelled":               "order cancelled",
	"Triggered":               "conditional order triggered",
	"Deactivated":             "order deactivated",
}

var createTypeLabels = map[string]string{
	"CreateByUser":              "user",
	"CreateByStopOrder":         "stop order",
	"CreateByTakeProfit":        "take profit",
	"CreateByPartialTakeProfit": "partial take profit",
	"CreateByStopLoss":          "stop loss",
	"CreateByPartialStopLoss":   "partial stop loss",
	"CreateByTrailingStop":      "trailing stop",
	"CreateByLiq":               "liquidation",
	"CreateByAdminClosing":      "admin closing",
	"CreateByClosing":           "closing",
	"CreateBySettle":            "settlement",
}

var cancelTypeLabels = map[string]string{
	"CancelByUser":                       "cancelled by user",
	"CancelByReduceOnly":                 "reduce-only cancel",
	"CancelByPrepareLiq":                 "liquidation prevention",
	"CancelByAdmin":                      "cancelled by admin",
	"CancelBySettle":                     "settlement",
	"CancelByTpSlTsClear":                "tp/sl cleared",
	"CancelByOCOTpCanceledBySlTriggered": "tp cancelled, sl triggered",
	"CancelByOCOSlCanceledByTpTriggered": "sl cancelled, tp triggered",
}

var rejectReasonLabels = map[string]string{
	"EC_NoError":               "no error",
	"EC_Others":                "other error",
	"EC_TooLateToCancel":       "too late to cancel",
	"EC_NoEnoughQtyToFill":     "insufficient quantity",
	"EC_QtyCannotBeZero":       "quantity cannot be zero",
	"EC_ReachMaxTradeNum":      "max trade number reached",
	"EC_ReachRiskPriceLimit":   "risk price limit reached",
	"EC_ReachMarketPriceLimit": "market price limit reached",
	"EC_OrderNotExist":         "order does not exist",
	"EC_InvalidSymbolStatus":   "invalid symbol status",
	"EC_BySelfMatch":           "self-match",
}

func label(m map[string]string, key string) string {
	if key == "" {
		return "-"
	}
	if v, ok := m[key]; ok {
		return v
	}
	return key
}

// FormatEvent renders one classified event for the operator channel.
func FormatEvent(ev classify.Event) string {
	switch ev.Kind {
	case classify.KindNewOrderFilled:
		return formatNewOrderFilled(ev)
	case classify.KindStopCreated:
		return formatStopCreated(ev)
	case classify.KindStopTriggered:
		return formatStopTriggered(ev)
	case classify.KindOrderCancelled:
		return formatCancelled(ev)
	case classify.KindPositionClosed:
		return FormatPositionClosed(ev, ev.ClosedPnl)
	case classify.KindRejected:
		return fmt.Sprintf("Order rejected: %s\nReason: %s\nOrder ID: %s",
			ev.Symbol, label(rejectReasonLabels, ev.Raw.RejectReason), ev.Raw.OrderID)
	default:
		return fmt.Sprintf("Order update: %s\nStatus: %s", ev.Symbol, label(orderStatusLabels, ev.Raw.OrderStatus))
	}
}

func formatNewOrderFilled(ev classify.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order filled: %s %s %s\n", ev.Symbol, ev.Raw.Side, ev.Raw.OrderType)
	fmt.Fprintf(&b, "Qty: %v\n", ev.Qty)
	fmt.Fprintf(&b, "Avg price: %v\n", ev.AvgPrice)
	if ev.StopLoss > 0 {
		fmt.Fprintf(&b, "Stop loss: %v\n", ev.StopLoss)
	}
	if ev.TakeProfit > 0 {
		fmt.Fprintf(&b, "Take profit: %v\n", ev.TakeProfit)
	}
	fmt.Fprintf(&b, "Created by: %s\n", label(createTypeLabels, ev.Raw.CreateType))
	fmt.Fprintf(&b, "Order ID: %s", ev.Raw.OrderID)
	return b.String()
}

func formatStopCreated(ev classify.Event) string {
	return fmt.Sprintf("%s created: %s\nQty: %v\nTrigger price: %v\nCreated by: %s",
		stopTypeName(ev), ev.Symbol, ev.Qty, ev.TriggerPrice, label(createTypeLabels, ev.Raw.CreateType))
}

func formatStopTriggered(ev classify.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s triggered: %s %s\n", stopTypeName(ev), ev.Symbol, ev.Raw.Side)
	fmt.Fprintf(&b, "Qty: %v\n", ev.Qty)
	fmt.Fprintf(&b, "Trigger price: %v\n", ev.TriggerPrice)
	fmt.Fprintf(&b, "Avg price: %v\n", ev.AvgPrice)
	if ev.ClosedPnl != 0 {
		fmt.Fprintf(&b, "Closed PnL: %.2f\n", ev.ClosedPnl)
	}
	fmt.Fprintf(&b, "Created by: %s", label(createTypeLabels, ev.Raw.CreateType))
	return b.String()
}

func formatCancelled(ev classify.Event) string {
	var b strings.Builder
	if ev.Raw.StopOrderType != "" {
		fmt.Fprintf(&b, "%s cancelled: %s\n", stopTypeName(ev), ev.Symbol)
		if ev.TriggerPrice > 0 {
			fmt.Fprintf(&b, "Trigger price: %v\n", ev.TriggerPrice)
		}
	} else {
		fmt.Fprintf(&b, "Order cancelled: %s %s\n", ev.Symbol, ev.Raw.Side)
	}
	fmt.Fprintf(&b, "Qty: %v\n", ev.Qty)
	fmt.Fprintf(&b, "Reason: %s", label(cancelTypeLabels, ev.Raw.CancelType))
	return b.String()
}

// FormatPositionClosed renders the close summary with realized PnL.
func FormatPositionClosed(ev classify.Event, closedPnl float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position closed: %s %s\n", ev.Symbol, ev.Raw.Side)
	fmt.Fprintf(&b, "Size: %v\n", ev.Qty)
	fmt.Fprintf(&b, "Avg price: %v\n", ev.AvgPrice)
	fmt.Fprintf(&b, "Closed PnL: %.2f\n", closedPnl)
	fmt.Fprintf(&b, "Created by: %s", label(createTypeLabels, ev.Raw.CreateType))
	return b.String()
}

// FormatOrderPlaced renders the entry confirmation sent after a signal opens.
func FormatOrderPlaced(symbol, side string, entry, qty, sl, leverage float64, targets []float64, splits []float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order placed: %s %s\n", symbol, side)
	fmt.Fprintf(&b, "Entry: %v\n", entry)
	fmt.Fprintf(&b, "Qty: %v\n", qty)
	fmt.Fprintf(&b, "SL: %v\n", sl)
	for i, tp := range targets {
		fmt.Fprintf(&b, "TP%d: %v", i+1, tp)
		if i < len(splits) {
			fmt.Fprintf(&b, " (%.0f%%)", splits[i]*100)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Leverage: %v", leverage)
	return b.String()
}

func stopTypeName(ev classify.Event) string {
	switch {
	case ev.IsTakeProfit():
		return "Take profit"
	case ev.IsStopLoss():
		return "Stop loss"
	case ev.Raw.StopOrderType != "":
		return ev.Raw.StopOrderType
	default:
		return "Stop order"
	}
}
