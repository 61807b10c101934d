// Package bybit 实现 Bybit 反向合约行情适配器。
// orderBookL2_25 推送快照与 delete/update/insert 增量，不带校验值。
package bybit

import (
	"encoding/json"
	"fmt"
	"strings"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
	"market-stream-reconciler/internal/util/fastparse"
)

// Endpoint Bybit 行情地址
const Endpoint = "wss://stream.bybit.com/realtime"

// topic 前缀
const (
	TopicBook  = "orderBookL2_25"
	TopicTrade = "trade"
	TopicKline = "klineV2.1"
)

// Adapter Bybit 适配器
type Adapter struct{}

// New 创建 Bybit 适配器
func New() exchange.Adapter { return &Adapter{} }

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformBybit }

// Endpoint 默认行情地址
func (a *Adapter) Endpoint() string { return Endpoint }

// Framing 推送为文本帧
func (a *Adapter) Framing() exchange.Framing { return exchange.FramingText }

// Channels 支持的频道
func (a *Adapter) Channels() []model.ChannelKind {
	return []model.ChannelKind{model.ChannelOrderBook, model.ChannelTrade, model.ChannelKline}
}

// RouteKey 订阅对应的路由键
func (a *Adapter) RouteKey(sub exchange.Subscription) model.RouteKey {
	return model.RouteKey{Channel: sub.Channel, Instrument: sub.Symbol}
}

// SubscribeFrame 构造订阅请求
func (a *Adapter) SubscribeFrame(sub exchange.Subscription) (exchange.Frame, error) {
	var prefix string
	switch sub.Channel {
	case model.ChannelOrderBook:
		prefix = TopicBook
	case model.ChannelTrade:
		prefix = TopicTrade
	case model.ChannelKline:
		prefix = TopicKline
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformBybit, sub.Channel)
	}
	data, err := json.Marshal(Request{Op: "subscribe", Args: []string{prefix + "." + sub.Symbol}})
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	return exchange.Text(data), nil
}

// KeepAlive 客户端心跳 {"op":"ping"}
func (a *Adapter) KeepAlive() (exchange.Frame, bool) {
	return exchange.Text([]byte(`{"op":"ping"}`)), true
}

// Verifier Bybit 不提供校验值
func (a *Adapter) Verifier() checksum.Verifier { return checksum.NopVerifier{} }

// IsZeroSize 数量按数值判断，0 与 0.0 都表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsNumericZero(size) }

// Parse 解析 Bybit 推送
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Bybit 消息失败: %w", err)
	}

	if msg.Request != nil {
		return parseResponse(&msg), nil
	}

	// topic 格式: <prefix>.<symbol>，symbol 取最后一段
	i := strings.LastIndexByte(msg.Topic, '.')
	if i < 0 || i == len(msg.Topic)-1 {
		return nil, nil
	}
	prefix, symbol := msg.Topic[:i], msg.Topic[i+1:]

	switch prefix {
	case TopicBook:
		return parseBook(symbol, &msg)
	case TopicTrade:
		return parseTrades(symbol, msg.Data)
	case TopicKline:
		return parseKline(symbol, msg.Data)
	}
	return nil, nil
}

func parseResponse(msg *Message) []model.Envelope {
	ok := msg.Success != nil && *msg.Success
	switch msg.Request.Op {
	case "ping":
		return []model.Envelope{&model.Control{Kind: model.ControlPong}}
	case "subscribe":
		if ok {
			return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: strings.Join(msg.Request.Args, ",")}}
		}
		return []model.Envelope{&model.Control{Kind: model.ControlRejected, Message: msg.RetMsg}}
	}
	if !ok {
		return []model.Envelope{&model.Control{Kind: model.ControlError, Message: msg.RetMsg}}
	}
	return nil
}

func parseBook(symbol string, msg *Message) ([]model.Envelope, error) {
	ts := int64(0)
	if msg.TimestampE6 != "" {
		e6, err := fastparse.ParseInt(msg.TimestampE6.String())
		if err != nil {
			return nil, fmt.Errorf("解析 Bybit 时间戳失败: %w", err)
		}
		ts = e6 / 1000
	}
	key := model.RouteKey{Channel: model.ChannelOrderBook, Instrument: symbol}

	switch msg.Type {
	case "snapshot":
		var entries []BookEntry
		if err := json.Unmarshal(msg.Data, &entries); err != nil {
			return nil, fmt.Errorf("解析 Bybit 深度快照失败: %w", err)
		}
		s := &model.Snapshot{Key: key, Timestamp: ts}
		for _, e := range entries {
			s.Bids, s.Asks = appendSide(s.Bids, s.Asks, e, e.Size.String())
		}
		return []model.Envelope{s}, nil
	case "delta":
		var delta BookDelta
		if err := json.Unmarshal(msg.Data, &delta); err != nil {
			return nil, fmt.Errorf("解析 Bybit 深度增量失败: %w", err)
		}
		d := &model.Delta{Key: key, Timestamp: ts}
		for _, e := range delta.Delete {
			d.Bids, d.Asks = appendSide(d.Bids, d.Asks, e, "0")
		}
		for _, e := range delta.Update {
			d.Bids, d.Asks = appendSide(d.Bids, d.Asks, e, e.Size.String())
		}
		for _, e := range delta.Insert {
			d.Bids, d.Asks = appendSide(d.Bids, d.Asks, e, e.Size.String())
		}
		return []model.Envelope{d}, nil
	}
	return nil, fmt.Errorf("未知的 Bybit 深度类型: %q", msg.Type)
}

func appendSide(bids, asks []model.Level, e BookEntry, size string) ([]model.Level, []model.Level) {
	l := model.Level{Price: e.Price, Size: size}
	switch e.Side {
	case "Buy":
		bids = append(bids, l)
	case "Sell":
		asks = append(asks, l)
	}
	return bids, asks
}

func parseTrades(symbol string, raw json.RawMessage) ([]model.Envelope, error) {
	var items []TradeData
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Bybit 成交数据失败: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	batch := &model.TradeBatch{
		Key:    model.RouteKey{Channel: model.ChannelTrade, Instrument: symbol},
		Trades: make([]model.Trade, 0, len(items)),
	}
	for _, it := range items {
		batch.Trades = append(batch.Trades, model.Trade{
			Platform:  model.PlatformBybit,
			Symbol:    symbol,
			Side:      strings.ToUpper(it.Side),
			Price:     it.Price.String(),
			Quantity:  it.Size.String(),
			TradeID:   it.TradeID,
			Timestamp: fastparse.MustParseInt(it.TradeTimeMs.String()),
		})
	}
	return []model.Envelope{batch}, nil
}

func parseKline(symbol string, raw json.RawMessage) ([]model.Envelope, error) {
	var items []KlineData
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Bybit K 线数据失败: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	k := items[0]
	return []model.Envelope{&model.KlineUpdate{
		Key: model.RouteKey{Channel: model.ChannelKline, Instrument: symbol},
		Kline: model.Kline{
			Platform:   model.PlatformBybit,
			Symbol:     symbol,
			Open:       k.Open.String(),
			High:       k.High.String(),
			Low:        k.Low.String(),
			Close:      k.Close.String(),
			Volume:     k.Volume.String(),
			CoinVolume: k.Turnover.String(),
			KlineType:  model.Kline1Min,
			Timestamp:  k.Start * 1000,
		},
	}}, nil
}
