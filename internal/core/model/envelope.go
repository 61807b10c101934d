package model

import "context"

// ChannelKind 订阅频道类型
type ChannelKind string

const (
	// ChannelOrderBook 深度频道
	ChannelOrderBook ChannelKind = "orderbook"
	// ChannelTrade 逐笔成交频道
	ChannelTrade ChannelKind = "trade"
	// ChannelKline K 线频道
	ChannelKline ChannelKind = "kline"
)

// ParseChannelKind 解析配置中的频道名称
func ParseChannelKind(s string) (ChannelKind, bool) {
	switch ChannelKind(s) {
	case ChannelOrderBook, ChannelTrade, ChannelKline:
		return ChannelKind(s), true
	}
	return "", false
}

// RouteKey 路由键: 频道 + 交易所原生合约标识
type RouteKey struct {
	Channel    ChannelKind
	Instrument string
}

// String 返回 "channel-instrument" 形式，便于日志输出
func (k RouteKey) String() string {
	return string(k.Channel) + "-" + k.Instrument
}

// Digest 交易所随深度推送的校验值
type Digest struct {
	// Value 校验值
	Value int64
	// Present 本条推送是否携带校验值
	Present bool
}

// Envelope 适配器解析出的归一化消息
// 具体类型: *Snapshot, *Delta, *TradeBatch, *KlineUpdate, *Control
type Envelope interface {
	envelope()
}

// Snapshot 全量深度
type Snapshot struct {
	Key       RouteKey
	Bids      []Level
	Asks      []Level
	Timestamp int64
	Checksum  Digest
}

// Delta 增量深度
type Delta struct {
	Key       RouteKey
	Bids      []Level
	Asks      []Level
	Timestamp int64
	Checksum  Digest
}

// TradeBatch 一条推送中的若干成交
type TradeBatch struct {
	Key    RouteKey
	Trades []Trade
}

// KlineUpdate K 线推送
type KlineUpdate struct {
	Key   RouteKey
	Kline Kline
}

// ControlKind 控制帧类型
type ControlKind int

const (
	// ControlPong 心跳响应
	ControlPong ControlKind = iota
	// ControlPing 服务端心跳，需要回复 Reply
	ControlPing
	// ControlSubscribed 订阅成功
	ControlSubscribed
	// ControlRejected 订阅被拒绝
	ControlRejected
	// ControlError 服务端错误通知
	ControlError
	// ControlReconnect 服务端要求重连（如交易所重启）
	ControlReconnect
)

func (k ControlKind) String() string {
	switch k {
	case ControlPong:
		return "pong"
	case ControlPing:
		return "ping"
	case ControlSubscribed:
		return "subscribed"
	case ControlRejected:
		return "rejected"
	case ControlError:
		return "error"
	case ControlReconnect:
		return "reconnect"
	}
	return "unknown"
}

// Control 控制帧，由会话状态机直接处理，不进入订单簿
type Control struct {
	Kind ControlKind
	// Reply 需要原样写回的数据（仅 ControlPing）
	Reply []byte
	// Message 服务端附带信息
	Message string
}

func (*Snapshot) envelope()    {}
func (*Delta) envelope()       {}
func (*TradeBatch) envelope()  {}
func (*KlineUpdate) envelope() {}
func (*Control) envelope()     {}

// BookConsumer 订单簿消费者
type BookConsumer func(ctx context.Context, book *OrderBook) error

// TradeConsumer 成交消费者
type TradeConsumer func(ctx context.Context, trade *Trade) error

// KlineConsumer K 线消费者
type KlineConsumer func(ctx context.Context, kline *Kline) error

// Consumers 会话构造时注册的下游消费者
type Consumers struct {
	OrderBook []BookConsumer
	Trade     []TradeConsumer
	Kline     []KlineConsumer
}

// For 判断某频道是否注册了消费者
func (c Consumers) For(ch ChannelKind) bool {
	switch ch {
	case ChannelOrderBook:
		return len(c.OrderBook) > 0
	case ChannelTrade:
		return len(c.Trade) > 0
	case ChannelKline:
		return len(c.Kline) > 0
	}
	return false
}

// Merge 合并两组消费者
func (c Consumers) Merge(o Consumers) Consumers {
	return Consumers{
		OrderBook: append(append([]BookConsumer(nil), c.OrderBook...), o.OrderBook...),
		Trade:     append(append([]TradeConsumer(nil), c.Trade...), o.Trade...),
		Kline:     append(append([]KlineConsumer(nil), c.Kline...), o.Kline...),
	}
}
