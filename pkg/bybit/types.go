package bybit

// Order statuses delivered on the private order stream.
const (
	StatusNew                   = "New"
	StatusPartiallyFilled       = "PartiallyFilled"
	StatusFilled                = "Filled"
	StatusCancelled             = "Cancelled"
	StatusPartiallyFilledCancel = "PartiallyFilledCanceled"
	StatusRejected              = "Rejected"
	StatusUntriggered           = "Untriggered"
	StatusTriggered             = "Triggered"
	StatusDeactivated           = "Deactivated"
)

// Stop order types attached to conditional orders.
const (
	StopTypeTakeProfit        = "TakeProfit"
	StopTypeStopLoss          = "StopLoss"
	StopTypePartialTakeProfit = "PartialTakeProfit"
	StopTypePartialStopLoss   = "PartialStopLoss"
	StopTypeTrailingStop      = "TrailingStop"
)

// InstrumentInfo carries the quantization and leverage limits for a symbol.
type InstrumentInfo struct {
	Symbol      string
	MinQty      float64
	MaxOrderQty float64
	QtyStep     float64
	MinNotional float64
	TickSize    float64
	MaxLeverage float64
}

// Position is a live position snapshot from the exchange.
type Position struct {
	Symbol     string
	Side       string
	Size       float64
	EntryPrice float64
}

// OrderUpdate is one raw record from the private order stream. Numeric fields
// stay strings as the exchange sends them; downstream classification converts.
type OrderUpdate struct {
	Category       string `json:"category"`
	Symbol         string `json:"symbol"`
	OrderID        string `json:"orderId"`
	OrderLinkID    string `json:"orderLinkId"`
	Side           string `json:"side"`
	OrderType      string `json:"orderType"`
	OrderStatus    string `json:"orderStatus"`
	StopOrderType  string `json:"stopOrderType"`
	CreateType     string `json:"createType"`
	CancelType     string `json:"cancelType"`
	RejectReason   string `json:"rejectReason"`
	TimeInForce    string `json:"timeInForce"`
	TpslMode       string `json:"tpslMode"`
	Price          string `json:"price"`
	AvgPrice       string `json:"avgPrice"`
	TriggerPrice   string `json:"triggerPrice"`
	Qty            string `json:"qty"`
	LeavesQty      string `json:"leavesQty"`
	CumExecQty     string `json:"cumExecQty"`
	CumExecValue   string `json:"cumExecValue"`
	CumExecFee     string `json:"cumExecFee"`
	ClosedPnl      string `json:"closedPnl"`
	TakeProfit     string `json:"takeProfit"`
	StopLoss       string `json:"stopLoss"`
	ReduceOnly     bool   `json:"reduceOnly"`
	CloseOnTrigger bool   `json:"closeOnTrigger"`
	CreatedTime    string `json:"createdTime"`
	UpdatedTime    string `json:"updatedTime"`
}

// OrderParams describes an entry order to place.
type OrderParams struct {
	Symbol      string
	Side        string // Buy or Sell
	OrderType   string // Market or Limit
	Qty         float64
	Price       float64 // limit orders only
	StopLoss    float64 // optional initial stop attached to the entry
	OrderLinkID string
}

// TradingStopParams configures a (partial) take-profit/stop-loss trigger.
type TradingStopParams struct {
	Symbol      string
	TakeProfit  float64
	StopLoss    float64
	TpSize      float64
	SlSize      float64
	TpslMode    string // Full or Partial
	TpLinkID    string
	SlLinkID    string
	PositionIdx int
}
