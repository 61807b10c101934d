// Package binance 定义 Binance USDT 永续合约消息类型。
package binance

import "encoding/json"

// SubscribeRequest Binance WebSocket 订阅请求
type SubscribeRequest struct {
	// Method 订阅方法: SUBSCRIBE
	Method string `json:"method"`
	// Params 订阅参数列表，如 "btcusdt@depth20@100ms"
	Params []string `json:"params"`
	// ID 请求 ID
	ID uint64 `json:"id"`
}

// Header 通用外层，用于区分订阅响应与行情推送
// 订阅响应形如 {"result":null,"id":1}，失败时带 error。
// encoding/json 按大小写不敏感匹配字段，e 与 E 必须同时声明。
type Header struct {
	// ID 请求 ID（仅订阅响应）
	ID *uint64 `json:"id,omitempty"`
	// Result 结果（成功为 null）
	Result json.RawMessage `json:"result,omitempty"`
	// Error 错误信息
	Error *ErrorInfo `json:"error,omitempty"`
	// EventType 事件类型: depthUpdate, aggTrade, kline
	EventType string `json:"e,omitempty"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E,omitempty"`
}

// ErrorInfo 订阅错误
type ErrorInfo struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// DepthUpdate 有限档深度推送（depth20@100ms），每次为完整的前 20 档
type DepthUpdate struct {
	// EventType 事件类型: depthUpdate
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// TransactTimeMs 撮合时间（毫秒）
	TransactTimeMs int64 `json:"T"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// FirstUpdateID 本次推送的首个 updateId
	FirstUpdateID int64 `json:"U"`
	// FinalUpdateID 本次推送的末个 updateId
	FinalUpdateID int64 `json:"u"`
	// Bids 买盘档位（价格、数量）
	Bids [][]string `json:"b"`
	// Asks 卖盘档位（价格、数量）
	Asks [][]string `json:"a"`
}

// AggTrade 归集成交
type AggTrade struct {
	EventType   string `json:"e"`
	EventTimeMs int64  `json:"E"`
	Symbol      string `json:"s"`
	AggID       int64  `json:"a"`
	Price       string `json:"p"`
	Qty         string `json:"q"`
	TradeMs     int64  `json:"T"`
	// BuyerMaker 买方是否为挂单方，true 表示主动卖出
	BuyerMaker bool `json:"m"`
}

// KlineEvent K 线推送
type KlineEvent struct {
	EventType   string    `json:"e"`
	EventTimeMs int64     `json:"E"`
	Symbol      string    `json:"s"`
	Kline       KlineData `json:"k"`
}

// KlineData K 线数据
// 推送同时包含 t/T、l/L、v/V、q/Q，大小写两种字段都要声明
type KlineData struct {
	StartMs       int64  `json:"t"`
	CloseMs       int64  `json:"T"`
	Interval      string `json:"i"`
	FirstTradeID  int64  `json:"f"`
	LastTradeID   int64  `json:"L"`
	Open          string `json:"o"`
	High          string `json:"h"`
	Low           string `json:"l"`
	Close         string `json:"c"`
	Volume        string `json:"v"`
	QuoteVolume   string `json:"q"`
	TakerBuyBase  string `json:"V"`
	TakerBuyQuote string `json:"Q"`
	Trades        int64  `json:"n"`
	// Closed 本根 K 线是否已收盘
	Closed bool `json:"x"`
}
