package session

import (
	"market-stream-reconciler/internal/util/timeutil"
)

// ConnectionMetrics 会话连接指标快照
type ConnectionMetrics struct {
	// Platform 交易所标识
	Platform string `json:"platform"`
	// State 会话状态
	State string `json:"state"`
	// ReconnectCount 重连次数
	ReconnectCount int64 `json:"reconnect_count"`
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64 `json:"parse_error_count"`
	// ChecksumFailures 订单簿校验失败次数
	ChecksumFailures int64 `json:"checksum_failures"`
	// Frames 收到的帧数
	Frames int64 `json:"frames"`
	// Published 发布的订单簿、成交、K 线条数
	Published int64 `json:"published"`
	// SubscribeAcks 收到的订阅确认数
	SubscribeAcks int64 `json:"subscribe_acks"`
	// LastMessageAgeMs 最后消息距今时间（毫秒），尚未收到消息时为 -1
	LastMessageAgeMs int64 `json:"last_message_age_ms"`
	// WsRttMs 最近一次心跳往返时延（毫秒）
	WsRttMs int64 `json:"ws_rtt_ms"`
}

// Metrics 返回连接指标快照
func (s *Session) Metrics() ConnectionMetrics {
	age := int64(-1)
	if last := s.lastFrameNs.Load(); last > 0 {
		age = timeutil.NanoToMs(timeutil.NowNano() - last)
	}
	return ConnectionMetrics{
		Platform:         s.platform,
		State:            s.State().String(),
		ReconnectCount:   s.reconnects.Load(),
		ParseErrorCount:  int64(s.parseErrs.Count()),
		ChecksumFailures: s.checksumFailures.Load(),
		Frames:           s.frames.Load(),
		Published:        s.published.Load(),
		SubscribeAcks:    s.subscribeAcks.Load(),
		LastMessageAgeMs: age,
		WsRttMs:          s.rttMs.Load(),
	}
}
