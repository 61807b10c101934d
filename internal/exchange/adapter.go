// Package exchange 定义交易所适配器接口。
// 会话与订单簿逻辑只实现一次，各交易所只负责订阅帧的构造、推送的解析
// 以及校验规则（校验器、零数量标记）。
package exchange

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gorilla/websocket"

	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
)

var (
	// ErrUnknownPlatform 未注册的交易所
	ErrUnknownPlatform = errors.New("未知的交易所")
	// ErrUnsupportedChannel 交易所不支持该频道
	ErrUnsupportedChannel = errors.New("交易所不支持该频道")
)

// Framing 二进制帧的压缩格式
type Framing int

const (
	// FramingText 文本帧，不压缩
	FramingText Framing = iota
	// FramingGzip 二进制帧为 gzip 压缩（Huobi）
	FramingGzip
)

// Subscription 一个 (频道, 交易对) 订阅
type Subscription struct {
	Channel model.ChannelKind
	Symbol  string
}

// Frame 待写出的 WebSocket 帧
type Frame struct {
	// Type websocket.TextMessage / websocket.PingMessage 等
	Type int
	// Data 帧内容
	Data []byte
}

// Text 构造文本帧
func Text(data []byte) Frame {
	return Frame{Type: websocket.TextMessage, Data: data}
}

// Adapter 交易所适配器
type Adapter interface {
	// Platform 交易所标识
	Platform() string
	// Endpoint 默认的公共行情地址
	Endpoint() string
	// Channels 支持的频道
	Channels() []model.ChannelKind
	// Framing 二进制帧的压缩格式
	Framing() Framing
	// RouteKey 返回该订阅的推送在 Parse 结果中携带的路由键
	RouteKey(sub Subscription) model.RouteKey
	// SubscribeFrame 构造单个订阅请求
	SubscribeFrame(sub Subscription) (Frame, error)
	// KeepAlive 构造一次心跳，ok 为 false 表示该交易所由服务端发起心跳
	KeepAlive() (frame Frame, ok bool)
	// Parse 把一帧（已解压）解析为归一化消息，无关消息返回空切片
	Parse(data []byte) ([]model.Envelope, error)
	// Verifier 订单簿校验器
	Verifier() checksum.Verifier
	// IsZeroSize 判断数量是否为删除标记
	IsZeroSize(size string) bool
}

// Supports 判断适配器是否支持某频道
func Supports(a Adapter, ch model.ChannelKind) bool {
	for _, c := range a.Channels() {
		if c == ch {
			return true
		}
	}
	return false
}

// Factory 创建适配器
type Factory func() Adapter

// Registry 交易所标识到适配器工厂的映射
type Registry map[string]Factory

// New 按交易所标识创建适配器
func (r Registry) New(platform string) (Adapter, error) {
	f, ok := r[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return f(), nil
}

// Platforms 已注册的交易所（排序）
func (r Registry) Platforms() []string {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Unsupported 构造不支持频道的错误
func Unsupported(platform string, ch model.ChannelKind) error {
	return fmt.Errorf("%w: %s/%s", ErrUnsupportedChannel, platform, ch)
}
