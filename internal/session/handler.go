package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"market-stream-reconciler/internal/core/book"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/dispatch"
	"market-stream-reconciler/internal/exchange"
	"market-stream-reconciler/internal/logging"
	"market-stream-reconciler/internal/util/timeutil"
)

// handleFrame 处理一帧推送，只在订阅被拒绝时返回错误
func (s *Session) handleFrame(messageType int, raw []byte) error {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	s.lastFrameNs.Store(timeutil.NowNano())
	s.frames.Add(1)
	s.remember(raw)

	data, err := decode(s.adapter.Framing(), messageType, raw)
	if err != nil {
		s.parseError(err, raw)
		return nil
	}
	envelopes, err := s.adapter.Parse(data)
	if err != nil {
		s.parseError(err, data)
		return nil
	}

	for _, env := range envelopes {
		switch m := env.(type) {
		case *model.Control:
			s.countFrame("control")
			if err := s.handleControl(m); err != nil {
				return err
			}
		case *model.Snapshot:
			s.countFrame("snapshot")
			s.applyBook(m.Key, func(b *book.Book) error {
				return b.ApplySnapshot(m.Bids, m.Asks, m.Timestamp, m.Checksum)
			})
		case *model.Delta:
			s.countFrame("delta")
			s.applyBook(m.Key, func(b *book.Book) error {
				return b.ApplyDiff(m.Bids, m.Asks, m.Timestamp, m.Checksum)
			})
		case *model.TradeBatch:
			s.countFrame("trade")
			s.publishTrades(m)
		case *model.KlineUpdate:
			s.countFrame("kline")
			s.publishKline(m)
		}
	}
	return nil
}

// handleControl 处理控制帧
func (s *Session) handleControl(c *model.Control) error {
	switch c.Kind {
	case model.ControlPing:
		s.connMu.Lock()
		conn := s.conn
		var err error
		if conn != nil {
			err = writeFrame(conn, exchange.Text(c.Reply))
		}
		s.connMu.Unlock()
		if err != nil {
			s.logger.Warn("回复服务端心跳失败", zap.Error(err))
			s.requestReconnect("heartbeat")
		}
	case model.ControlPong:
		s.onPong()
	case model.ControlSubscribed:
		s.subscribeAcks.Add(1)
		s.logger.Debug("订阅成功", zap.String("message", c.Message))
	case model.ControlRejected:
		return fmt.Errorf("%w: %s: %s", ErrSubscribeRejected, s.platform, c.Message)
	case model.ControlError:
		s.logger.Warn("服务端错误", zap.String("message", c.Message))
	case model.ControlReconnect:
		s.logger.Info("服务端要求重连", zap.String("message", c.Message))
		s.requestReconnect("server")
	}
	return nil
}

// onPong 根据上次心跳发送时间计算往返时延
func (s *Session) onPong() {
	sent := s.lastPingSentNs.Load()
	if sent == 0 {
		return
	}
	rtt := timeutil.NanoToMs(timeutil.NowNano() - sent)
	s.rttMs.Store(rtt)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RTT.WithLabelValues(s.platform).Set(float64(rtt))
	}
}

// applyBook 合并深度并发布截断视图
// 校验失败时仍发布本次结果，随后强制重连
func (s *Session) applyBook(key model.RouteKey, apply func(b *book.Book) error) {
	b, ok := s.books[key]
	if !ok {
		return
	}
	err := apply(b)
	switch {
	case errors.Is(err, book.ErrNoSnapshot):
		s.logger.Debug("未收到快照，丢弃增量", zap.Stringer("route", key))
		return
	case errors.Is(err, book.ErrChecksumMismatch):
		s.onChecksumFailure(key, err)
	case err != nil:
		s.logger.Warn("订单簿更新失败", zap.Stringer("route", key), zap.Error(err))
		return
	}

	s.published.Add(1)
	dispatch.Publish(s.deps.Dispatcher, s.platform+".orderbook", s.deps.Consumers.OrderBook, b.PublishedView(), (*model.OrderBook).Clone)
}

// onChecksumFailure 记录校验失败并转储最近原始帧
func (s *Session) onChecksumFailure(key model.RouteKey, err error) {
	s.checksumFailures.Add(1)
	symbol := s.symbolFor(key)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ChecksumFailures.WithLabelValues(s.platform, symbol).Inc()
	}

	recent := s.recentFrames()
	fields := []zap.Field{
		zap.String("symbol", symbol),
		zap.Int("recent_frames", len(recent)),
		zap.Error(err),
	}
	for i, f := range recent {
		fields = append(fields, zap.ByteString(fmt.Sprintf("frame_%d", i), logging.Sample(f, 512)))
	}
	s.logger.Error("订单簿校验失败，准备重连", fields...)
	s.requestReconnect("checksum")
}

func (s *Session) publishTrades(m *model.TradeBatch) {
	symbol, ok := s.route(m.Key)
	if !ok {
		return
	}
	for i := range m.Trades {
		t := m.Trades[i]
		t.Symbol = symbol
		dispatch.Publish(s.deps.Dispatcher, s.platform+".trade", s.deps.Consumers.Trade, &t, cloneTrade)
	}
	s.published.Add(int64(len(m.Trades)))
}

func (s *Session) publishKline(m *model.KlineUpdate) {
	symbol, ok := s.route(m.Key)
	if !ok {
		return
	}
	k := m.Kline
	k.Symbol = symbol
	dispatch.Publish(s.deps.Dispatcher, s.platform+".kline", s.deps.Consumers.Kline, &k, cloneKline)
	s.published.Add(1)
}

func cloneTrade(t *model.Trade) *model.Trade {
	c := *t
	return &c
}

func cloneKline(k *model.Kline) *model.Kline {
	c := *k
	return &c
}

// route 查找路由键对应的配置交易对
func (s *Session) route(key model.RouteKey) (string, bool) {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()
	symbol, ok := s.routes[key]
	return symbol, ok
}

func (s *Session) symbolFor(key model.RouteKey) string {
	if symbol, ok := s.route(key); ok {
		return symbol
	}
	return key.Instrument
}

// parseError 解析失败计数，按采样输出日志
func (s *Session) parseError(err error, data []byte) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ParseErrors.WithLabelValues(s.platform).Inc()
	}
	if count, ok := s.parseErrs.Allow(); ok {
		s.logger.Warn("解析消息失败",
			zap.Uint64("parse_errors_total", count),
			zap.ByteString("sample", logging.Sample(data, 200)),
			zap.Error(err))
	}
}

func (s *Session) countFrame(kind string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Frames.WithLabelValues(s.platform, kind).Inc()
	}
}

// remember 保存最近的原始帧
func (s *Session) remember(raw []byte) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recent.PushBack(raw)
	for s.recent.Len() > s.cfg.RecentFrames {
		s.recent.PopFront()
	}
}

func (s *Session) recentFrames() [][]byte {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	out := make([][]byte, 0, s.recent.Len())
	for i := 0; i < s.recent.Len(); i++ {
		out = append(out, s.recent.At(i))
	}
	return out
}
