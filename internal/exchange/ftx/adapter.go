// Package ftx 实现 FTX 行情适配器。
// 订阅频道: orderbook（partial + update，100 档浮点 CRC32 校验）、trades
package ftx

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

// Endpoint FTX 行情地址
const Endpoint = "wss://ftx.com/ws/"

// codeRestart 交易所重启通知，需要重连
const codeRestart = 20001

// codeBadRequest 订阅参数错误（市场或频道不存在）
const codeBadRequest = 400

// Adapter FTX 适配器
type Adapter struct {
	verifier *checksum.CRC32Verifier
}

// New 创建 FTX 适配器
func New() exchange.Adapter {
	return &Adapter{verifier: checksum.NewFTXVerifier()}
}

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformFTX }

// Endpoint 默认行情地址
func (a *Adapter) Endpoint() string { return Endpoint }

// Framing 推送为文本帧
func (a *Adapter) Framing() exchange.Framing { return exchange.FramingText }

// Channels 支持的频道
func (a *Adapter) Channels() []model.ChannelKind {
	return []model.ChannelKind{model.ChannelOrderBook, model.ChannelTrade}
}

// RouteKey 订阅对应的路由键
func (a *Adapter) RouteKey(sub exchange.Subscription) model.RouteKey {
	return model.RouteKey{Channel: sub.Channel, Instrument: sub.Symbol}
}

// SubscribeFrame 构造订阅请求
func (a *Adapter) SubscribeFrame(sub exchange.Subscription) (exchange.Frame, error) {
	var channel string
	switch sub.Channel {
	case model.ChannelOrderBook:
		channel = "orderbook"
	case model.ChannelTrade:
		channel = "trades"
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformFTX, sub.Channel)
	}
	data, err := json.Marshal(SubscribeRequest{Op: "subscribe", Channel: channel, Market: sub.Symbol})
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	return exchange.Text(data), nil
}

// KeepAlive 客户端心跳 {"op":"ping"}
func (a *Adapter) KeepAlive() (exchange.Frame, bool) {
	return exchange.Text([]byte(`{"op":"ping"}`)), true
}

// Verifier 订单簿校验器
func (a *Adapter) Verifier() checksum.Verifier { return a.verifier }

// IsZeroSize FTX 数量为数值，0 与 0.0 都表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsNumericZero(size) }

// Parse 解析 FTX 推送
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 FTX 消息失败: %w", err)
	}

	switch msg.Type {
	case "pong":
		return []model.Envelope{&model.Control{Kind: model.ControlPong}}, nil
	case "subscribed":
		return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: msg.Channel + ":" + msg.Market}}, nil
	case "error":
		text := messageText(msg.Msg)
		kind := model.ControlError
		if isRejection(msg.Code, text) {
			kind = model.ControlRejected
		}
		return []model.Envelope{&model.Control{Kind: kind, Message: fmt.Sprintf("%d %s", msg.Code, text)}}, nil
	case "info":
		// 重启通知的错误码可能出现在 code 或 msg 字段
		if msg.Code == codeRestart || messageText(msg.Msg) == strconv.Itoa(codeRestart) {
			return []model.Envelope{&model.Control{Kind: model.ControlReconnect, Message: "交易所重启"}}, nil
		}
		return nil, nil
	case "partial", "update":
	default:
		return nil, nil
	}

	switch msg.Channel {
	case "orderbook":
		return parseBook(msg.Market, msg.Data)
	case "trades":
		return parseTrades(msg.Market, msg.Data)
	}
	return nil, nil
}

// messageText msg 字段可能是字符串或数字
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// isRejection 订阅被拒绝: 400 且市场或频道无效
func isRejection(code int, text string) bool {
	if code != codeBadRequest {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "invalid market") || strings.Contains(lower, "invalid channel")
}

func parseBook(market string, raw json.RawMessage) ([]model.Envelope, error) {
	var d BookData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("解析 FTX 深度数据失败: %w", err)
	}
	bids, err := toLevels(d.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := toLevels(d.Asks)
	if err != nil {
		return nil, err
	}
	digest := model.Digest{}
	if d.Checksum != nil {
		digest = model.Digest{Value: *d.Checksum, Present: true}
	}
	ts, err := secondsToMillis(d.Time)
	if err != nil {
		return nil, err
	}

	key := model.RouteKey{Channel: model.ChannelOrderBook, Instrument: market}
	switch d.Action {
	case "partial":
		return []model.Envelope{&model.Snapshot{Key: key, Bids: bids, Asks: asks, Timestamp: ts, Checksum: digest}}, nil
	case "update":
		return []model.Envelope{&model.Delta{Key: key, Bids: bids, Asks: asks, Timestamp: ts, Checksum: digest}}, nil
	}
	return nil, fmt.Errorf("未知的 FTX 深度动作: %q", d.Action)
}

func parseTrades(market string, raw json.RawMessage) ([]model.Envelope, error) {
	var data []TradeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 FTX 成交数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	batch := &model.TradeBatch{
		Key:    model.RouteKey{Channel: model.ChannelTrade, Instrument: market},
		Trades: make([]model.Trade, 0, len(data)),
	}
	for _, d := range data {
		ts, err := time.Parse(time.RFC3339Nano, d.Time)
		if err != nil {
			return nil, fmt.Errorf("解析 FTX 成交时间失败: %w", err)
		}
		batch.Trades = append(batch.Trades, model.Trade{
			Platform:  model.PlatformFTX,
			Symbol:    market,
			Side:      strings.ToUpper(d.Side),
			Price:     d.Price.String(),
			Quantity:  d.Size.String(),
			TradeID:   d.ID.String(),
			Timestamp: ts.UnixMilli(),
		})
	}
	return []model.Envelope{batch}, nil
}

// toLevels 保留数值的原始文本，校验时按浮点格式重新格式化
func toLevels(rows [][]json.Number) ([]model.Level, error) {
	out := make([]model.Level, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("FTX 深度档位字段不足: %v", r)
		}
		out = append(out, model.Level{Price: r[0].String(), Size: r[1].String()})
	}
	return out, nil
}

func secondsToMillis(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("解析 FTX 时间戳失败: %w", err)
	}
	return int64(math.Round(f * 1000)), nil
}
