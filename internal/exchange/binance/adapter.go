package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

// Endpoint Binance USDT 永续合约行情地址
const Endpoint = "wss://fstream.binance.com/ws"

// Adapter Binance 适配器
type Adapter struct {
	// reqID 订阅请求 ID
	reqID atomic.Uint64
}

// New 创建 Binance 适配器
func New() exchange.Adapter { return &Adapter{} }

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformBinance }

// Endpoint 默认行情地址
func (a *Adapter) Endpoint() string { return Endpoint }

// Framing 推送为文本帧
func (a *Adapter) Framing() exchange.Framing { return exchange.FramingText }

// Channels 支持的频道
func (a *Adapter) Channels() []model.ChannelKind {
	return []model.ChannelKind{model.ChannelOrderBook, model.ChannelTrade, model.ChannelKline}
}

// RouteKey 推送中的 s 字段为大写交易对
func (a *Adapter) RouteKey(sub exchange.Subscription) model.RouteKey {
	return model.RouteKey{Channel: sub.Channel, Instrument: strings.ToUpper(sub.Symbol)}
}

// SubscribeFrame 流名称使用小写交易对
func (a *Adapter) SubscribeFrame(sub exchange.Subscription) (exchange.Frame, error) {
	symbol := strings.ToLower(sub.Symbol)
	var stream string
	switch sub.Channel {
	case model.ChannelOrderBook:
		stream = symbol + "@depth20@100ms"
	case model.ChannelTrade:
		stream = symbol + "@aggTrade"
	case model.ChannelKline:
		stream = symbol + "@kline_5m"
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformBinance, sub.Channel)
	}

	data, err := json.Marshal(SubscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{stream},
		ID:     a.reqID.Add(1),
	})
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	return exchange.Text(data), nil
}

// KeepAlive 使用 WebSocket 控制帧 ping
func (a *Adapter) KeepAlive() (exchange.Frame, bool) {
	return exchange.Frame{Type: websocket.PingMessage}, true
}

// Verifier 订单簿校验器
func (a *Adapter) Verifier() checksum.Verifier { return checksum.CrossedBookVerifier{} }

// IsZeroSize 数量按数值判断，0 与 0.0 都表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsNumericZero(size) }
