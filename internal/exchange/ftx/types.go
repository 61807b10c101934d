package ftx

import "encoding/json"

// SubscribeRequest FTX 订阅请求
type SubscribeRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
	Market  string `json:"market"`
}

// Message FTX 推送
type Message struct {
	// Type 消息类型: pong, error, info, subscribed, unsubscribed, partial, update
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Market  string          `json:"market,omitempty"`
	Code    int             `json:"code,omitempty"`
	Msg     json.RawMessage `json:"msg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BookData 深度数据，价格与数量为 JSON 数值
type BookData struct {
	// Action partial（快照）或 update（增量）
	Action string `json:"action"`
	// Time 秒级浮点时间戳
	Time     json.Number     `json:"time"`
	Checksum *int64          `json:"checksum,omitempty"`
	Bids     [][]json.Number `json:"bids"`
	Asks     [][]json.Number `json:"asks"`
}

// TradeData 成交数据
type TradeData struct {
	ID          json.Number `json:"id"`
	Price       json.Number `json:"price"`
	Size        json.Number `json:"size"`
	Side        string      `json:"side"`
	Liquidation bool        `json:"liquidation"`
	// Time ISO 8601 时间
	Time string `json:"time"`
}
