package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

type instrumentRow struct {
	Symbol        string `json:"symbol"`
	LotSizeFilter struct {
		MinOrderQty      string `json:"minOrderQty"`
		MaxOrderQty      string `json:"maxOrderQty"`
		QtyStep          string `json:"qtyStep"`
		MinNotionalValue string `json:"minNotionalValue"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LeverageFilter struct {
		MaxLeverage string `json:"maxLeverage"`
	} `json:"leverageFilter"`
}

func (r instrumentRow) toInfo() InstrumentInfo {
	return InstrumentInfo{
		Symbol:      r.Symbol,
		MinQty:      toFloat(r.LotSizeFilter.MinOrderQty),
		MaxOrderQty: toFloat(r.LotSizeFilter.MaxOrderQty),
		QtyStep:     toFloat(r.LotSizeFilter.QtyStep),
		MinNotional: toFloat(r.LotSizeFilter.MinNotionalValue),
		TickSize:    toFloat(r.PriceFilter.TickSize),
		MaxLeverage: toFloat(r.LeverageFilter.MaxLeverage),
	}
}

// GetInstrumentInfo fetches quantization rules for a single linear symbol.
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) (InstrumentInfo, error) {
	params := url.Values{}
	params.Set("category", CategoryLinear)
	params.Set("symbol", symbol)
	params.Set("limit", "1")
	raw, err := c.doGet(ctx, "/v5/market/instruments-info", params, false)
	if err != nil {
		return InstrumentInfo{}, err
	}
	var result struct {
		List []instrumentRow `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return InstrumentInfo{}, fmt.Errorf("bybit: decode instruments: %w", err)
	}
	if len(result.List) == 0 {
		return InstrumentInfo{}, fmt.Errorf("bybit: unknown instrument %s", symbol)
	}
	return result.List[0].toInfo(), nil
}

// GetAllInstruments pages through every linear instrument. Used by the cache warmup.
func (c *Client) GetAllInstruments(ctx context.Context) ([]InstrumentInfo, error) {
	var out []InstrumentInfo
	cursor := ""
	for {
		params := url.Values{}
		params.Set("category", CategoryLinear)
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		raw, err := c.doGet(ctx, "/v5/market/instruments-info", params, false)
		if err != nil {
			return nil, err
		}
		var result struct {
			List           []instrumentRow `json:"list"`
			NextPageCursor string          `json:"nextPageCursor"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("bybit: decode instruments: %w", err)
		}
		for _, row := range result.List {
			out = append(out, row.toInfo())
		}
		if result.NextPageCursor == "" {
			return out, nil
		}
		cursor = result.NextPageCursor
	}
}

// GetPositions returns live positions for one symbol.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	params := url.Values{}
	params.Set("category", CategoryLinear)
	params.Set("symbol", symbol)
	return c.queryPositions(ctx, params)
}

// GetPositionsBySettleCoin returns all live positions settled in coin. Used
// by the startup reconciliation.
func (c *Client) GetPositionsBySettleCoin(ctx context.Context, settleCoin string) ([]Position, error) {
	params := url.Values{}
	params.Set("category", CategoryLinear)
	params.Set("settleCoin", settleCoin)
	return c.queryPositions(ctx, params)
}

func (c *Client) queryPositions(ctx context.Context, params url.Values) ([]Position, error) {
	raw, err := c.doGet(ctx, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}
	var result struct {
		List []struct {
			Symbol   string `json:"symbol"`
			Side     string `json:"side"`
			Size     string `json:"size"`
			AvgPrice string `json:"avgPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bybit: decode positions: %w", err)
	}
	positions := make([]Position, 0, len(result.List))
	for _, row := range result.List {
		positions = append(positions, Position{
			Symbol:     row.Symbol,
			Side:       row.Side,
			Size:       toFloat(row.Size),
			EntryPrice: toFloat(row.AvgPrice),
		})
	}
	return positions, nil
}

// GetWalletBalance returns the unified-account balance of one coin.
func (c *Client) GetWalletBalance(ctx context.Context, coin string) (float64, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", coin)
	raw, err := c.doGet(ctx, "/v5/account/wallet-balance", params, true)
	if err != nil {
		return 0, err
	}
	var result struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("bybit: decode wallet balance: %w", err)
	}
	for _, acct := range result.List {
		for _, entry := range acct.Coin {
			if entry.Coin == coin {
				return toFloat(entry.WalletBalance), nil
			}
		}
	}
	return 0, nil
}

// SetLeverage sets buy and sell leverage for a symbol. Returns
// ErrLeverageNotModified when the symbol already has the requested value.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	body := map[string]string{
		"category":     CategoryLinear,
		"symbol":       symbol,
		"buyLeverage":  formatFloat(leverage),
		"sellLeverage": formatFloat(leverage),
	}
	_, err := c.doPost(ctx, "/v5/position/set-leverage", body)
	return err
}

// PlaceOrder places an order and returns the exchange order ID. A non-zero
// StopLoss is attached to the entry as the initial full-size stop.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (string, error) {
	body := map[string]string{
		"category":  CategoryLinear,
		"symbol":    p.Symbol,
		"side":      p.Side,
		"orderType": p.OrderType,
		"qty":       formatFloat(p.Qty),
	}
	if p.OrderType == "Limit" {
		body["price"] = formatFloat(p.Price)
	}
	if p.StopLoss > 0 {
		body["stopLoss"] = formatFloat(p.StopLoss)
	}
	if p.OrderLinkID != "" {
		body["orderLinkId"] = p.OrderLinkID
	}
	raw, err := c.doPost(ctx, "/v5/order/create", body)
	if err != nil {
		return "", err
	}
	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("bybit: decode order ack: %w", err)
	}
	return result.OrderID, nil
}

// SetTradingStop registers a TP and/or SL trigger on a position. Partial mode
// requires the tranche sizes.
func (c *Client) SetTradingStop(ctx context.Context, p TradingStopParams) error {
	body := map[string]string{
		"category":    CategoryLinear,
		"symbol":      p.Symbol,
		"tpslMode":    p.TpslMode,
		"positionIdx": strconv.Itoa(p.PositionIdx),
	}
	if p.TakeProfit > 0 {
		body["takeProfit"] = formatFloat(p.TakeProfit)
	}
	if p.StopLoss > 0 {
		body["stopLoss"] = formatFloat(p.StopLoss)
	}
	if p.TpSize > 0 {
		body["tpSize"] = formatFloat(p.TpSize)
	}
	if p.SlSize > 0 {
		body["slSize"] = formatFloat(p.SlSize)
	}
	if p.TpLinkID != "" {
		body["tpOrderLinkId"] = p.TpLinkID
	}
	if p.SlLinkID != "" {
		body["slOrderLinkId"] = p.SlLinkID
	}
	_, err := c.doPost(ctx, "/v5/position/trading-stop", body)
	return err
}

// GetClosedPnL returns recent closed-position PnL rows.
func (c *Client) GetClosedPnL(ctx context.Context, limit int) ([]ClosedPnL, error) {
	params := url.Values{}
	params.Set("category", CategoryLinear)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.doGet(ctx, "/v5/position/closed-pnl", params, true)
	if err != nil {
		return nil, err
	}
	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Side      string `json:"side"`
			Qty       string `json:"qty"`
			AvgExit   string `json:"avgExitPrice"`
			ClosedPnl string `json:"closedPnl"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bybit: decode closed pnl: %w", err)
	}
	rows := make([]ClosedPnL, 0, len(result.List))
	for _, r := range result.List {
		rows = append(rows, ClosedPnL{
			Symbol:    r.Symbol,
			Side:      r.Side,
			Qty:       toFloat(r.Qty),
			ExitPrice: toFloat(r.AvgExit),
			ClosedPnl: toFloat(r.ClosedPnl),
		})
	}
	return rows, nil
}

// ClosedPnL is one realized-PnL row from position history.
type ClosedPnL struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Qty       float64 `json:"qty"`
	ExitPrice float64 `json:"exitPrice"`
	ClosedPnl float64 `json:"closedPnl"`
}
