// Package okx 实现 OKX V5 公共行情适配器。
// 连接地址: wss://ws.okx.com:8443/ws/v5/public
// 订阅频道: books50-l2-tbt（快照 + 增量，带 CRC32 校验）、trades、candle1m
// 心跳机制: 文本 ping/pong
package okx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/util/fastparse"
)

// 频道名称
const (
	ChannelBooks  = "books50-l2-tbt"
	ChannelTrades = "trades"
	ChannelCandle = "candle1m"
)

// 订阅被拒绝的错误码
var rejectCodes = map[string]bool{
	"60012": true, // 非法请求
	"60018": true, // 频道或合约不存在
}

// Parse 解析 OKX 推送
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	if bytes.Equal(data, []byte("pong")) {
		return []model.Envelope{&model.Control{Kind: model.ControlPong}}, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 OKX 消息失败: %w", err)
	}

	switch msg.Event {
	case "subscribe":
		return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: argString(msg.Arg)}}, nil
	case "error":
		kind := model.ControlError
		if rejectCodes[msg.Code] {
			kind = model.ControlRejected
		}
		return []model.Envelope{&model.Control{Kind: kind, Message: msg.Code + " " + msg.Msg}}, nil
	case "":
	default:
		return nil, nil
	}

	if msg.Arg == nil || len(msg.Data) == 0 {
		return nil, nil
	}

	switch msg.Arg.Channel {
	case ChannelBooks:
		return parseBooks(msg.Arg.InstId, msg.Action, msg.Data)
	case ChannelTrades:
		return parseTrades(msg.Arg.InstId, msg.Data)
	case ChannelCandle:
		return parseCandle(msg.Arg.InstId, msg.Data)
	}
	return nil, nil
}

// parseBooks 解析深度推送
func parseBooks(instId, action string, raw json.RawMessage) ([]model.Envelope, error) {
	var data []BookData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 OKX 深度数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	key := model.RouteKey{Channel: model.ChannelOrderBook, Instrument: instId}
	out := make([]model.Envelope, 0, len(data))
	for _, d := range data {
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
		ts := fastparse.MustParseInt(d.Ts)

		switch action {
		case "snapshot":
			out = append(out, &model.Snapshot{Key: key, Bids: bids, Asks: asks, Timestamp: ts, Checksum: digest})
		case "update":
			out = append(out, &model.Delta{Key: key, Bids: bids, Asks: asks, Timestamp: ts, Checksum: digest})
		default:
			return nil, fmt.Errorf("未知的 OKX 深度动作: %q", action)
		}
	}
	return out, nil
}

func parseTrades(instId string, raw json.RawMessage) ([]model.Envelope, error) {
	var data []TradeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 OKX 成交数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	batch := &model.TradeBatch{
		Key:    model.RouteKey{Channel: model.ChannelTrade, Instrument: instId},
		Trades: make([]model.Trade, 0, len(data)),
	}
	for _, d := range data {
		batch.Trades = append(batch.Trades, model.Trade{
			Platform:  model.PlatformOKX,
			Symbol:    instId,
			Side:      strings.ToUpper(d.Side),
			Price:     d.Px,
			Quantity:  d.Sz,
			TradeID:   d.TradeId,
			Timestamp: fastparse.MustParseInt(d.Ts),
		})
	}
	return []model.Envelope{batch}, nil
}

// parseCandle 解析 K 线
// 格式: [[ts, o, h, l, c, vol, volCcy, ...]]
func parseCandle(instId string, raw json.RawMessage) ([]model.Envelope, error) {
	var data [][]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 OKX K 线数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	row := data[0]
	if len(row) < 7 {
		return nil, fmt.Errorf("OKX K 线字段不足: %d", len(row))
	}
	return []model.Envelope{&model.KlineUpdate{
		Key: model.RouteKey{Channel: model.ChannelKline, Instrument: instId},
		Kline: model.Kline{
			Platform:   model.PlatformOKX,
			Symbol:     instId,
			Open:       row[1],
			High:       row[2],
			Low:        row[3],
			Close:      row[4],
			Volume:     row[5],
			CoinVolume: row[6],
			KlineType:  model.Kline1Min,
			Timestamp:  fastparse.MustParseInt(row[0]),
		},
	}}, nil
}

// toLevels 取每档的前两个字段（价格、数量）
func toLevels(rows [][]string) ([]model.Level, error) {
	out := make([]model.Level, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("OKX 深度档位字段不足: %v", r)
		}
		out = append(out, model.Level{Price: r[0], Size: r[1]})
	}
	return out, nil
}

func argString(arg *SubscribeArg) string {
	if arg == nil {
		return ""
	}
	return arg.Channel + ":" + arg.InstId
}
