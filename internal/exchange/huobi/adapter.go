// Package huobi 实现 Huobi USDT 永续合约行情适配器。
// 服务端推送 gzip 压缩的二进制帧，并主动发送 {"ping":n}，客户端回复 {"pong":n}。
package huobi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

// Endpoint Huobi USDT 永续合约行情地址
const Endpoint = "wss://api.hbdm.com/linear-swap-ws"

// topic 后缀
const (
	suffixDepth = "depth.step6"
	suffixKline = "kline.1min"
	suffixTrade = "trade.detail"
)

// Adapter Huobi 适配器
type Adapter struct {
	// seq 订阅请求 id
	seq atomic.Uint64
}

// New 创建 Huobi 适配器
func New() exchange.Adapter { return &Adapter{} }

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformHuobi }

// Endpoint 默认行情地址
func (a *Adapter) Endpoint() string { return Endpoint }

// Framing 推送为 gzip 压缩的二进制帧
func (a *Adapter) Framing() exchange.Framing { return exchange.FramingGzip }

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
	var suffix string
	switch sub.Channel {
	case model.ChannelOrderBook:
		suffix = suffixDepth
	case model.ChannelTrade:
		suffix = suffixTrade
	case model.ChannelKline:
		suffix = suffixKline
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformHuobi, sub.Channel)
	}
	data, err := json.Marshal(SubRequest{
		Sub: "market." + sub.Symbol + "." + suffix,
		ID:  "id" + strconv.FormatUint(a.seq.Add(1), 10),
	})
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	return exchange.Text(data), nil
}

// KeepAlive Huobi 由服务端发起心跳
func (a *Adapter) KeepAlive() (exchange.Frame, bool) { return exchange.Frame{}, false }

// Verifier 订单簿校验器
func (a *Adapter) Verifier() checksum.Verifier { return checksum.CrossedBookVerifier{} }

// IsZeroSize 数量按数值判断，0 与 0.0 都表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsNumericZero(size) }

// Parse 解析已解压的 Huobi 推送
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Huobi 消息失败: %w", err)
	}

	if msg.Ping != "" {
		return []model.Envelope{&model.Control{
			Kind:  model.ControlPing,
			Reply: []byte(`{"pong":` + msg.Ping.String() + `}`),
		}}, nil
	}

	switch msg.Status {
	case "ok":
		if msg.Subbed != "" {
			return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: msg.Subbed}}, nil
		}
		return nil, nil
	case "error":
		return []model.Envelope{&model.Control{Kind: model.ControlRejected, Message: msg.ErrCode + " " + msg.ErrMsg}}, nil
	}

	if msg.Ch == "" || len(msg.Tick) == 0 {
		return nil, nil
	}

	// ch 格式: market.<contract>.<suffix>
	parts := strings.SplitN(msg.Ch, ".", 3)
	if len(parts) != 3 || parts[0] != "market" {
		return nil, nil
	}
	contract, suffix := parts[1], parts[2]

	switch suffix {
	case suffixDepth:
		return parseDepth(contract, msg.Tick)
	case suffixKline:
		return parseKline(contract, msg.Tick)
	case suffixTrade:
		return parseTrades(contract, msg.Tick)
	}
	return nil, nil
}

func parseDepth(contract string, raw json.RawMessage) ([]model.Envelope, error) {
	var tick DepthTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("解析 Huobi 深度数据失败: %w", err)
	}
	bids, err := toLevels(tick.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := toLevels(tick.Asks)
	if err != nil {
		return nil, err
	}
	return []model.Envelope{&model.Snapshot{
		Key:       model.RouteKey{Channel: model.ChannelOrderBook, Instrument: contract},
		Bids:      bids,
		Asks:      asks,
		Timestamp: tick.Ts,
	}}, nil
}

func parseKline(contract string, raw json.RawMessage) ([]model.Envelope, error) {
	var tick KlineTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("解析 Huobi K 线数据失败: %w", err)
	}
	fields := []json.Number{tick.Open, tick.High, tick.Low, tick.Close, tick.Vol, tick.Amount}
	out := make([]string, len(fields))
	for i, f := range fields {
		s, err := normalize(f)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return []model.Envelope{&model.KlineUpdate{
		Key: model.RouteKey{Channel: model.ChannelKline, Instrument: contract},
		Kline: model.Kline{
			Platform:   model.PlatformHuobi,
			Symbol:     contract,
			Open:       out[0],
			High:       out[1],
			Low:        out[2],
			Close:      out[3],
			Volume:     out[4],
			CoinVolume: out[5],
			KlineType:  model.Kline1Min,
			Timestamp:  tick.ID * 1000,
		},
	}}, nil
}

func parseTrades(contract string, raw json.RawMessage) ([]model.Envelope, error) {
	var tick TradeTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("解析 Huobi 成交数据失败: %w", err)
	}
	if len(tick.Data) == 0 {
		return nil, nil
	}
	batch := &model.TradeBatch{
		Key:    model.RouteKey{Channel: model.ChannelTrade, Instrument: contract},
		Trades: make([]model.Trade, 0, len(tick.Data)),
	}
	for _, d := range tick.Data {
		price, err := normalize(d.Price)
		if err != nil {
			return nil, err
		}
		qty, err := normalize(d.Amount)
		if err != nil {
			return nil, err
		}
		batch.Trades = append(batch.Trades, model.Trade{
			Platform:  model.PlatformHuobi,
			Symbol:    contract,
			Side:      strings.ToUpper(d.Direction),
			Price:     price,
			Quantity:  qty,
			TradeID:   d.ID.String(),
			Timestamp: d.Ts,
		})
	}
	return []model.Envelope{batch}, nil
}

func toLevels(rows [][]json.Number) ([]model.Level, error) {
	out := make([]model.Level, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("Huobi 深度档位字段不足: %v", r)
		}
		p, err := normalize(r[0])
		if err != nil {
			return nil, err
		}
		s, err := normalize(r[1])
		if err != nil {
			return nil, err
		}
		out = append(out, model.Level{Price: p, Size: s})
	}
	return out, nil
}

// normalize 把 JSON 数值转为十进制定点文本，避免科学计数法进入下游
func normalize(n json.Number) (string, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return "", fmt.Errorf("解析 Huobi 数值 %q 失败: %w", n, err)
	}
	return d.String(), nil
}
