package gmo

import (
	"encoding/json"
	"time"
)

// Prices on the wire stay as strings end to end. The broker sends exact
// decimals and the order/signing path must echo them back without a float
// round-trip; the engine converts at its own edge.

// envelope is the broker's uniform response wrapper. Success carries data,
// failure carries messages; the two never mix.
type envelope struct {
	Status       int             `json:"status"`
	Data         json.RawMessage `json:"data"`
	Messages     []brokerMessage `json:"messages"`
	ResponseTime time.Time       `json:"responsetime"`
}

type brokerMessage struct {
	Code   string `json:"message_code"`
	String string `json:"message_string"`
}

// ── Public API ──

// StatusData is GET /v1/status.
type StatusData struct {
	Status string `json:"status"` // OPEN / CLOSE / MAINTENANCE
}

// TickerEntry is one element of GET /v1/ticker.
type TickerEntry struct {
	Symbol    string    `json:"symbol"`
	Ask       string    `json:"ask"`
	Bid       string    `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Kline is one bar of GET /v1/klines. OpenTime is Unix milliseconds as a
// decimal string.
type Kline struct {
	OpenTime string `json:"openTime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
}

// SymbolRule is one element of GET /v1/symbols (trading rules).
type SymbolRule struct {
	Symbol           string `json:"symbol"`
	MinOpenOrderSize string `json:"minOpenOrderSize"`
	MaxOrderSize     string `json:"maxOrderSize"`
	SizeStep         string `json:"sizeStep"`
	TickSize         string `json:"tickSize"`
}

// ── Private API: account ──

// Asset is one element of GET /v1/account/assets.
type Asset struct {
	Equity             string `json:"equity"`
	AvailableAmount    string `json:"availableAmount"`
	Balance            string `json:"balance"`
	EstimatedTradeFee  string `json:"estimatedTradeFee"`
	Margin             string `json:"margin"`
	MarginRatio        string `json:"marginRatio"`
	PositionLossGain   string `json:"positionLossGain"`
	TotalSwap          string `json:"totalSwap"`
	TransferableAmount string `json:"transferableAmount"`
}

// Position is one element of GET /v1/openPositions.
type Position struct {
	PositionID  int64     `json:"positionId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Size        string    `json:"size"`
	OrderedSize string    `json:"orderedSize"`
	Price       string    `json:"price"`
	LossGain    string    `json:"lossGain"`
	TotalSwap   string    `json:"totalSwap"`
	Timestamp   time.Time `json:"timestamp"`
}

// PositionSummary is one element of GET /v1/positionSummary.
type PositionSummary struct {
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	AvgPositionRate  string `json:"averagePositionRate"`
	PositionLossGain string `json:"positionLossGain"`
	SumOrderedSize   string `json:"sumOrderedSize"`
	SumPositionSize  string `json:"sumPositionSize"`
	SumTotalSwap     string `json:"sumTotalSwap"`
}

// Order is one element of GET /v1/activeOrders and order responses.
type Order struct {
	RootOrderID   int64     `json:"rootOrderId"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	OrderID       int64     `json:"orderId"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	OrderType     string    `json:"orderType"`
	ExecutionType string    `json:"executionType"`
	SettleType    string    `json:"settleType"`
	Size          string    `json:"size"`
	Price         string    `json:"price,omitempty"`
	Status        string    `json:"status"`
	ExpireType    string    `json:"expiry,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Execution is one element of GET /v1/executions and /v1/latestExecutions.
type Execution struct {
	ExecutionID   int64     `json:"executionId"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	OrderID       int64     `json:"orderId"`
	PositionID    int64     `json:"positionId"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	SettleType    string    `json:"settleType"`
	Size          string    `json:"size"`
	Price         string    `json:"price"`
	LossGain      string    `json:"lossGain"`
	Fee           string    `json:"fee"`
	Timestamp     time.Time `json:"timestamp"`
}

// ── Private API: orders ──

// SpeedOrderRequest is POST /v1/speedOrder (market order with optional
// protective levels).
type SpeedOrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	LowerBound    string `json:"lowerBound,omitempty"`
	UpperBound    string `json:"upperBound,omitempty"`
	IsHedgeable   bool   `json:"isHedgeable,omitempty"`
}

// OrderRequest is POST /v1/order.
type OrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	ExecutionType string `json:"executionType"` // MARKET / LIMIT / STOP / OCO
	ClientOrderID string `json:"clientOrderId,omitempty"`
	LimitPrice    string `json:"limitPrice,omitempty"`
	StopPrice     string `json:"stopPrice,omitempty"`
	OCOLimitPrice string `json:"ocoLimitPrice,omitempty"`
	OCOStopPrice  string `json:"ocoStopPrice,omitempty"`
	ExpireType    string `json:"expiry,omitempty"`
}

// IFDOrderRequest is POST /v1/ifdOrder.
type IFDOrderRequest struct {
	Symbol              string `json:"symbol"`
	ClientOrderID       string `json:"clientOrderId,omitempty"`
	FirstSide           string `json:"firstSide"`
	FirstExecutionType  string `json:"firstExecutionType"`
	FirstSize           string `json:"firstSize"`
	FirstPrice          string `json:"firstPrice,omitempty"`
	SecondExecutionType string `json:"secondExecutionType"`
	SecondSize          string `json:"secondSize"`
	SecondPrice         string `json:"secondPrice,omitempty"`
}

// IFOOrderRequest is POST /v1/ifoOrder (if-done + one-cancels-other).
type IFOOrderRequest struct {
	Symbol             string `json:"symbol"`
	ClientOrderID      string `json:"clientOrderId,omitempty"`
	FirstSide          string `json:"firstSide"`
	FirstExecutionType string `json:"firstExecutionType"`
	FirstSize          string `json:"firstSize"`
	FirstPrice         string `json:"firstPrice,omitempty"`
	SecondSize         string `json:"secondSize"`
	SecondLimitPrice   string `json:"secondLimitPrice"`
	SecondStopPrice    string `json:"secondStopPrice"`
}

// ChangeOrderRequest is POST /v1/changeOrder.
type ChangeOrderRequest struct {
	OrderID       int64  `json:"orderId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	Price         string `json:"price"`
}

// CancelOrdersRequest is POST /v1/cancelOrders.
type CancelOrdersRequest struct {
	RootOrderIDs []int64 `json:"rootOrderIds"`
}

// CancelBulkOrderRequest is POST /v1/cancelBulkOrder.
type CancelBulkOrderRequest struct {
	Symbols    []string `json:"symbols"`
	Side       string   `json:"side,omitempty"`
	SettleType string   `json:"settleType,omitempty"`
}

// CloseOrderRequest is POST /v1/closeOrder.
type CloseOrderRequest struct {
	Symbol          string           `json:"symbol"`
	Side            string           `json:"side"`
	ExecutionType   string           `json:"executionType"`
	ClientOrderID   string           `json:"clientOrderId,omitempty"`
	LimitPrice      string           `json:"limitPrice,omitempty"`
	StopPrice       string           `json:"stopPrice,omitempty"`
	Size            string           `json:"size,omitempty"`
	SettlePositions []SettlePosition `json:"settlePosition,omitempty"`
}

// SettlePosition names one position lot to close.
type SettlePosition struct {
	PositionID int64  `json:"positionId"`
	Size       string `json:"size"`
}

// ── Private API: ws-auth ──

// wsAuthData is the POST /v1/ws-auth payload (an opaque token string).
type wsAuthData string

// ── WebSocket frames ──

// WSCommand is one subscribe/unsubscribe frame on either stream.
type WSCommand struct {
	Command string `json:"command"` // "subscribe" / "unsubscribe"
	Channel string `json:"channel"`
	Symbol  string `json:"symbol,omitempty"`
	Option  string `json:"option,omitempty"` // "PERIODIC" on positionSummaryEvents
}

// Public stream channels.
const (
	ChannelTicker = "ticker"
)

// Private stream channels.
const (
	ChannelExecutionEvents       = "executionEvents"
	ChannelOrderEvents           = "orderEvents"
	ChannelPositionEvents        = "positionEvents"
	ChannelPositionSummaryEvents = "positionSummaryEvents"
)

// WSTicker is one ticker frame from the public stream.
type WSTicker struct {
	Symbol    string    `json:"symbol"`
	Ask       string    `json:"ask"`
	Bid       string    `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// WSPrivateEvent is one frame from the private stream. Channel is echoed by
// the broker; the payload is kept raw and decoded by the consumer that owns
// the channel.
type WSPrivateEvent struct {
	Channel string
	Raw     json.RawMessage
}
