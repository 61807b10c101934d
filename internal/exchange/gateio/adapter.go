// Package gateio 实现 Gate.io USDT 永续合约行情适配器。
// 深度推送不带校验值，以买一低于卖一作为订单簿一致性检查。
package gateio

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

// Endpoint Gate.io USDT 永续合约地址
const Endpoint = "wss://fx-ws.gateio.ws/v4/ws/usdt"

// 频道名称
const (
	ChannelOrderBook = "futures.order_book"
	ChannelTrades    = "futures.trades"
	ChannelCandle    = "futures.candlesticks"
	ChannelPing      = "futures.ping"
	ChannelPong      = "futures.pong"
)

// bookDepth 订阅档位
const bookDepth = "20"

// Adapter Gate.io 适配器
type Adapter struct {
	now func() time.Time
}

// New 创建 Gate.io 适配器
func New() exchange.Adapter {
	return &Adapter{now: time.Now}
}

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformGate }

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
	req := Request{Time: a.now().Unix(), Event: "subscribe"}
	switch sub.Channel {
	case model.ChannelOrderBook:
		req.Channel = ChannelOrderBook
		req.Payload = []string{sub.Symbol, bookDepth, "0"}
	case model.ChannelTrade:
		req.Channel = ChannelTrades
		req.Payload = []string{sub.Symbol}
	case model.ChannelKline:
		req.Channel = ChannelCandle
		req.Payload = []string{"1m", sub.Symbol}
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformGate, sub.Channel)
	}
	return marshal(req)
}

// KeepAlive 客户端心跳 futures.ping
func (a *Adapter) KeepAlive() (exchange.Frame, bool) {
	f, err := marshal(Request{Time: a.now().Unix(), Channel: ChannelPing})
	return f, err == nil
}

// Verifier 订单簿校验器
func (a *Adapter) Verifier() checksum.Verifier { return checksum.CrossedBookVerifier{} }

// IsZeroSize 数量按数值判断，0 与 0.0 都表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsNumericZero(size) }

// Parse 解析 Gate.io 推送
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Gate.io 消息失败: %w", err)
	}

	if msg.Channel == ChannelPong {
		return []model.Envelope{&model.Control{Kind: model.ControlPong}}, nil
	}
	if msg.Error != nil {
		kind := model.ControlError
		if msg.Event == "subscribe" {
			kind = model.ControlRejected
		}
		return []model.Envelope{&model.Control{
			Kind:    kind,
			Message: fmt.Sprintf("%s %d %s", msg.Channel, msg.Error.Code, msg.Error.Message),
		}}, nil
	}

	switch msg.Event {
	case "subscribe":
		return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: msg.Channel}}, nil
	case "all", "update":
	default:
		return nil, nil
	}

	switch msg.Channel {
	case ChannelOrderBook:
		if msg.Event == "all" {
			return parseBookAll(msg.Result)
		}
		return parseBookUpdate(msg.Result, msg.Time)
	case ChannelTrades:
		return parseTrades(msg.Result)
	case ChannelCandle:
		return parseCandles(msg.Result)
	}
	return nil, nil
}

func parseBookAll(raw json.RawMessage) ([]model.Envelope, error) {
	var d BookAll
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("解析 Gate.io 全量深度失败: %w", err)
	}
	return []model.Envelope{&model.Snapshot{
		Key:       model.RouteKey{Channel: model.ChannelOrderBook, Instrument: d.Contract},
		Bids:      toLevels(d.Bids),
		Asks:      toLevels(d.Asks),
		Timestamp: d.T,
	}}, nil
}

// parseBookUpdate 按数量符号拆分买卖盘，每个价位同时对另一侧发出删除
// 同一推送可能包含多个合约，按合约分别产生增量
func parseBookUpdate(raw json.RawMessage, sec int64) ([]model.Envelope, error) {
	var items []BookUpdate
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Gate.io 增量深度失败: %w", err)
	}

	deltas := make(map[string]*model.Delta)
	var order []string
	for _, it := range items {
		size, err := decimal.NewFromString(it.S.String())
		if err != nil {
			return nil, fmt.Errorf("解析 Gate.io 深度数量失败: %w", err)
		}
		d, ok := deltas[it.C]
		if !ok {
			d = &model.Delta{
				Key:       model.RouteKey{Channel: model.ChannelOrderBook, Instrument: it.C},
				Timestamp: sec * 1000,
			}
			deltas[it.C] = d
			order = append(order, it.C)
		}
		// 价位换边时清除对侧的旧价位
		switch size.Sign() {
		case 1:
			d.Bids = append(d.Bids, model.Level{Price: it.P, Size: size.String()})
			d.Asks = append(d.Asks, model.Level{Price: it.P, Size: "0"})
		case -1:
			d.Asks = append(d.Asks, model.Level{Price: it.P, Size: size.Abs().String()})
			d.Bids = append(d.Bids, model.Level{Price: it.P, Size: "0"})
		default:
			d.Bids = append(d.Bids, model.Level{Price: it.P, Size: "0"})
			d.Asks = append(d.Asks, model.Level{Price: it.P, Size: "0"})
		}
	}

	out := make([]model.Envelope, 0, len(order))
	for _, c := range order {
		out = append(out, deltas[c])
	}
	return out, nil
}

func parseTrades(raw json.RawMessage) ([]model.Envelope, error) {
	var items []TradeData
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Gate.io 成交数据失败: %w", err)
	}

	batches := make(map[string]*model.TradeBatch)
	var order []string
	for _, it := range items {
		size, err := decimal.NewFromString(it.Size.String())
		if err != nil {
			return nil, fmt.Errorf("解析 Gate.io 成交数量失败: %w", err)
		}
		side := model.SideBuy
		if size.IsNegative() {
			side = model.SideSell
		}
		b, ok := batches[it.Contract]
		if !ok {
			b = &model.TradeBatch{Key: model.RouteKey{Channel: model.ChannelTrade, Instrument: it.Contract}}
			batches[it.Contract] = b
			order = append(order, it.Contract)
		}
		b.Trades = append(b.Trades, model.Trade{
			Platform:  model.PlatformGate,
			Symbol:    it.Contract,
			Side:      side,
			Price:     it.Price,
			Quantity:  size.Abs().String(),
			TradeID:   fmt.Sprintf("%d", it.ID),
			Timestamp: it.CreateTimeMs,
		})
	}

	out := make([]model.Envelope, 0, len(order))
	for _, c := range order {
		out = append(out, batches[c])
	}
	return out, nil
}

func parseCandles(raw json.RawMessage) ([]model.Envelope, error) {
	var items []Candle
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Gate.io K 线数据失败: %w", err)
	}
	out := make([]model.Envelope, 0, len(items))
	for _, c := range items {
		_, contract, ok := strings.Cut(c.N, "_")
		if !ok {
			return nil, fmt.Errorf("Gate.io K 线名称格式错误: %q", c.N)
		}
		out = append(out, &model.KlineUpdate{
			Key: model.RouteKey{Channel: model.ChannelKline, Instrument: contract},
			Kline: model.Kline{
				Platform:   model.PlatformGate,
				Symbol:     contract,
				Open:       c.O,
				High:       c.H,
				Low:        c.L,
				Close:      c.C,
				Volume:     c.V.String(),
				CoinVolume: "0",
				KlineType:  model.Kline1Min,
				Timestamp:  c.T * 1000,
			},
		})
	}
	return out, nil
}

func toLevels(src []BookLevel) []model.Level {
	out := make([]model.Level, 0, len(src))
	for _, l := range src {
		out = append(out, model.Level{Price: l.P, Size: l.S.String()})
	}
	return out
}

func marshal(req Request) (exchange.Frame, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化请求失败: %w", err)
	}
	return exchange.Text(data), nil
}
