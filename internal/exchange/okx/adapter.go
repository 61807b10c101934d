package okx

import (
	"encoding/json"
	"fmt"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/exchange"
)

// Endpoint OKX V5 公共频道地址
const Endpoint = "wss://ws.okx.com:8443/ws/v5/public"

// Adapter OKX V5 适配器
type Adapter struct {
	verifier *checksum.CRC32Verifier
}

// New 创建 OKX 适配器
func New() exchange.Adapter {
	return &Adapter{verifier: checksum.NewOKXVerifier()}
}

// Platform 交易所标识
func (a *Adapter) Platform() string { return model.PlatformOKX }

// Endpoint 默认行情地址
func (a *Adapter) Endpoint() string { return Endpoint }

// Framing 推送为文本帧
func (a *Adapter) Framing() exchange.Framing { return exchange.FramingText }

// Channels 支持的频道
func (a *Adapter) Channels() []model.ChannelKind {
	return []model.ChannelKind{model.ChannelOrderBook, model.ChannelTrade, model.ChannelKline}
}

// RouteKey OKX 推送中的 instId 与订阅时一致
func (a *Adapter) RouteKey(sub exchange.Subscription) model.RouteKey {
	return model.RouteKey{Channel: sub.Channel, Instrument: sub.Symbol}
}

// SubscribeFrame 每个 (频道, 合约) 单独发送一条订阅
func (a *Adapter) SubscribeFrame(sub exchange.Subscription) (exchange.Frame, error) {
	var channel string
	switch sub.Channel {
	case model.ChannelOrderBook:
		channel = ChannelBooks
	case model.ChannelTrade:
		channel = ChannelTrades
	case model.ChannelKline:
		channel = ChannelCandle
	default:
		return exchange.Frame{}, exchange.Unsupported(model.PlatformOKX, sub.Channel)
	}

	data, err := json.Marshal(SubscribeRequest{
		Op:   "subscribe",
		Args: []SubscribeArg{{Channel: channel, InstId: sub.Symbol}},
	})
	if err != nil {
		return exchange.Frame{}, fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	return exchange.Text(data), nil
}

// KeepAlive 文本 ping
func (a *Adapter) KeepAlive() (exchange.Frame, bool) {
	return exchange.Text([]byte("ping")), true
}

// Verifier 订单簿校验器
func (a *Adapter) Verifier() checksum.Verifier { return a.verifier }

// IsZeroSize OKX 以字符串 "0" 表示删除
func (a *Adapter) IsZeroSize(size string) bool { return book.IsStringZero(size) }
