// Package binance 实现 Binance USDT 永续合约行情适配器。
// 订阅流: <symbol>@depth20@100ms（完整前 20 档）、<symbol>@aggTrade、<symbol>@kline_5m
// 字段映射: E -> Timestamp, s -> Instrument（大写）
package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"market-stream-reconciler/internal/core/model"
)

// Parse 解析 Binance WebSocket 消息
// 非行情消息返回空切片
func (a *Adapter) Parse(data []byte) ([]model.Envelope, error) {
	var env Header
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("解析 Binance 消息失败: %w", err)
	}

	if env.Error != nil {
		return []model.Envelope{&model.Control{
			Kind:    model.ControlRejected,
			Message: fmt.Sprintf("%d %s", env.Error.Code, env.Error.Msg),
		}}, nil
	}
	if env.ID != nil {
		return []model.Envelope{&model.Control{Kind: model.ControlSubscribed, Message: strconv.FormatUint(*env.ID, 10)}}, nil
	}

	switch env.EventType {
	case "depthUpdate":
		return parseDepth(data)
	case "aggTrade":
		return parseAggTrade(data)
	case "kline":
		return parseKline(data)
	}
	return nil, nil
}

func parseDepth(data []byte) ([]model.Envelope, error) {
	var msg DepthUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance 深度失败: %w", err)
	}
	symbol := strings.ToUpper(msg.Symbol)
	if symbol == "" {
		return nil, nil
	}
	bids, err := toLevels(msg.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := toLevels(msg.Asks)
	if err != nil {
		return nil, err
	}
	return []model.Envelope{&model.Snapshot{
		Key:       model.RouteKey{Channel: model.ChannelOrderBook, Instrument: symbol},
		Bids:      bids,
		Asks:      asks,
		Timestamp: msg.EventTimeMs,
	}}, nil
}

func parseAggTrade(data []byte) ([]model.Envelope, error) {
	var msg AggTrade
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance 成交失败: %w", err)
	}
	symbol := strings.ToUpper(msg.Symbol)
	side := model.SideBuy
	if msg.BuyerMaker {
		side = model.SideSell
	}
	return []model.Envelope{&model.TradeBatch{
		Key: model.RouteKey{Channel: model.ChannelTrade, Instrument: symbol},
		Trades: []model.Trade{{
			Platform:  model.PlatformBinance,
			Symbol:    symbol,
			Side:      side,
			Price:     msg.Price,
			Quantity:  msg.Qty,
			TradeID:   strconv.FormatInt(msg.AggID, 10),
			Timestamp: msg.TradeMs,
		}},
	}}, nil
}

// parseKline 只发布已收盘的 K 线
func parseKline(data []byte) ([]model.Envelope, error) {
	var msg KlineEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance K 线失败: %w", err)
	}
	if !msg.Kline.Closed {
		return nil, nil
	}
	symbol := strings.ToUpper(msg.Symbol)
	k := msg.Kline
	return []model.Envelope{&model.KlineUpdate{
		Key: model.RouteKey{Channel: model.ChannelKline, Instrument: symbol},
		Kline: model.Kline{
			Platform:   model.PlatformBinance,
			Symbol:     symbol,
			Open:       k.Open,
			High:       k.High,
			Low:        k.Low,
			Close:      k.Close,
			Volume:     k.Volume,
			CoinVolume: k.QuoteVolume,
			KlineType:  model.Kline5Min,
			Timestamp:  k.StartMs,
		},
	}}, nil
}

func toLevels(rows [][]string) ([]model.Level, error) {
	out := make([]model.Level, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("Binance 深度档位字段不足: %v", r)
		}
		out = append(out, model.Level{Price: r[0], Size: r[1]})
	}
	return out, nil
}
