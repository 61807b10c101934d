package bybit

import "encoding/json"

// Request Bybit 请求
type Request struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// Message Bybit 推送，响应与数据推送共用
type Message struct {
	// 响应字段
	Success *bool    `json:"success,omitempty"`
	RetMsg  string   `json:"ret_msg,omitempty"`
	Request *Request `json:"request,omitempty"`

	// 数据字段
	Topic string `json:"topic,omitempty"`
	// Type snapshot, delta
	Type        string          `json:"type,omitempty"`
	TimestampE6 json.Number     `json:"timestamp_e6,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// BookEntry 深度条目，Side 为 Buy/Sell
type BookEntry struct {
	Price  string      `json:"price"`
	Symbol string      `json:"symbol"`
	ID     json.Number `json:"id"`
	Side   string      `json:"side"`
	Size   json.Number `json:"size"`
}

// BookDelta 增量深度
type BookDelta struct {
	Delete []BookEntry `json:"delete"`
	Update []BookEntry `json:"update"`
	Insert []BookEntry `json:"insert"`
}

// TradeData 成交
type TradeData struct {
	TradeTimeMs json.Number `json:"trade_time_ms"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	Size        json.Number `json:"size"`
	Price       json.Number `json:"price"`
	TradeID     string      `json:"trade_id"`
}

// KlineData K 线，Start 为秒级时间戳
type KlineData struct {
	Start    int64       `json:"start"`
	Open     json.Number `json:"open"`
	Close    json.Number `json:"close"`
	High     json.Number `json:"high"`
	Low      json.Number `json:"low"`
	Volume   json.Number `json:"volume"`
	Turnover json.Number `json:"turnover"`
	Confirm  bool        `json:"confirm"`
}
