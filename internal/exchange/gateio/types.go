package gateio

import "encoding/json"

// Request Gate.io 订阅/心跳请求
type Request struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event,omitempty"`
	Payload []string `json:"payload,omitempty"`
}

// Message Gate.io 推送
type Message struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	// Event subscribe, all, update, error
	Event  string          `json:"event"`
	Error  *ErrorInfo      `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ErrorInfo 错误信息
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BookLevel 深度档位，s 为合约张数
type BookLevel struct {
	P string      `json:"p"`
	S json.Number `json:"s"`
}

// BookAll 全量深度
type BookAll struct {
	// T 毫秒时间戳
	T        int64       `json:"t"`
	Contract string      `json:"contract"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

// BookUpdate 增量深度条目
// s > 0 为买盘，s < 0 为卖盘，s == 0 表示该价位已删除
type BookUpdate struct {
	P  string      `json:"p"`
	S  json.Number `json:"s"`
	C  string      `json:"c"`
	ID int64       `json:"id"`
}

// TradeData 成交，size 为负表示卖方主动
type TradeData struct {
	Size         json.Number `json:"size"`
	ID           int64       `json:"id"`
	CreateTimeMs int64       `json:"create_time_ms"`
	Price        string      `json:"price"`
	Contract     string      `json:"contract"`
}

// Candle K 线，n 为 "1m_BTC_USDT"
type Candle struct {
	// T 秒级时间戳
	T int64       `json:"t"`
	V json.Number `json:"v"`
	C string      `json:"c"`
	H string      `json:"h"`
	L string      `json:"l"`
	O string      `json:"o"`
	N string      `json:"n"`
}
