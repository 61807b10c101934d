// Package okx 定义 OKX V5 公共频道的消息类型。
package okx

import "encoding/json"

// SubscribeRequest OKX 订阅请求
type SubscribeRequest struct {
	// Op 操作类型: subscribe, unsubscribe
	Op string `json:"op"`
	// Args 订阅参数列表
	Args []SubscribeArg `json:"args"`
}

// SubscribeArg 订阅参数
type SubscribeArg struct {
	// Channel 频道名称: books50-l2-tbt, trades, candle1m
	Channel string `json:"channel"`
	// InstId 合约 ID: BTC-USDT-SWAP
	InstId string `json:"instId"`
}

// Message OKX 推送（事件响应与数据推送共用）
type Message struct {
	// Event 事件类型: subscribe, error；数据推送为空
	Event string `json:"event,omitempty"`
	// Code 错误码
	Code string `json:"code,omitempty"`
	// Msg 错误消息
	Msg string `json:"msg,omitempty"`
	// Arg 订阅参数
	Arg *SubscribeArg `json:"arg,omitempty"`
	// Action 深度动作: snapshot, update
	Action string `json:"action,omitempty"`
	// Data 数据，按频道解析
	Data json.RawMessage `json:"data,omitempty"`
}

// BookData 深度数据
// bids/asks 格式: [[价格, 数量, 废弃, 订单数], ...]
type BookData struct {
	// Bids 买盘
	Bids [][]string `json:"bids"`
	// Asks 卖盘
	Asks [][]string `json:"asks"`
	// Ts 交易所时间戳（毫秒字符串）
	Ts string `json:"ts"`
	// Checksum 前 25 档校验值（有符号 32 位）
	Checksum *int64 `json:"checksum,omitempty"`
	// SeqId 序列号
	SeqId int64 `json:"seqId,omitempty"`
}

// TradeData 成交数据
type TradeData struct {
	InstId  string `json:"instId"`
	TradeId string `json:"tradeId"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
	// Side 吃单方向: buy, sell
	Side string `json:"side"`
	Ts   string `json:"ts"`
}
