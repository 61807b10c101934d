package model

// 成交方向
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// KlineType K 线周期
const (
	Kline1Min = "kline_1min"
	Kline5Min = "kline_5min"
)

// Trade 逐笔成交
type Trade struct {
	// Platform 交易所标识
	Platform string `json:"platform"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 方向: BUY / SELL
	Side string `json:"side"`
	// Price 成交价
	Price string `json:"price"`
	// Quantity 成交量
	Quantity string `json:"quantity"`
	// TradeID 成交 ID（部分交易所不提供）
	TradeID string `json:"trade_id,omitempty"`
	// Timestamp 成交时间（毫秒）
	Timestamp int64 `json:"timestamp"`
}

// Kline K 线
type Kline struct {
	Platform   string `json:"platform"`
	Symbol     string `json:"symbol"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
	CoinVolume string `json:"coin_volume"`
	KlineType  string `json:"kline_type"`
	// Timestamp K 线开始时间（毫秒）
	Timestamp int64 `json:"timestamp"`
}
