package huobi

import "encoding/json"

// SubRequest Huobi 订阅请求
type SubRequest struct {
	Sub string `json:"sub"`
	ID  string `json:"id"`
}

// Message Huobi 推送（解压后）
type Message struct {
	// Ping 服务端心跳，需回复 {"pong": 同值}
	Ping json.Number `json:"ping,omitempty"`

	// 订阅响应
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	Subbed  string `json:"subbed,omitempty"`
	ErrCode string `json:"err-code,omitempty"`
	ErrMsg  string `json:"err-msg,omitempty"`

	// 数据推送
	Ch   string          `json:"ch,omitempty"`
	Ts   int64           `json:"ts,omitempty"`
	Tick json.RawMessage `json:"tick,omitempty"`
}

// DepthTick step6 深度，每次推送都是全量
type DepthTick struct {
	Bids    [][]json.Number `json:"bids"`
	Asks    [][]json.Number `json:"asks"`
	Ts      int64           `json:"ts"`
	Version int64           `json:"version"`
}

// KlineTick K 线，ID 为秒级起始时间
type KlineTick struct {
	ID     int64       `json:"id"`
	Open   json.Number `json:"open"`
	Close  json.Number `json:"close"`
	Low    json.Number `json:"low"`
	High   json.Number `json:"high"`
	Amount json.Number `json:"amount"`
	Vol    json.Number `json:"vol"`
}

// TradeTick 成交推送
type TradeTick struct {
	ID   int64         `json:"id"`
	Ts   int64         `json:"ts"`
	Data []TradeDetail `json:"data"`
}

// TradeDetail 成交明细
type TradeDetail struct {
	Amount    json.Number `json:"amount"`
	Ts        int64       `json:"ts"`
	ID        json.Number `json:"id"`
	Price     json.Number `json:"price"`
	Direction string      `json:"direction"`
}
