// Package supervisor 按配置创建并运行全部交易所会话。
// 心跳调度器与分发器在所有会话间共享，由 Supervisor 持有并注入每个会话。
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"market-stream-reconciler/internal/config"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/dispatch"
	"market-stream-reconciler/internal/exchange"
	"market-stream-reconciler/internal/heartbeat"
	"market-stream-reconciler/internal/metrics"
	"market-stream-reconciler/internal/session"
)

// Supervisor 会话管理器
type Supervisor struct {
	logger     *zap.Logger
	scheduler  *heartbeat.Scheduler
	dispatcher *dispatch.Dispatcher
	sessions   []*session.Session
}

// New 创建调度器、分发器以及每个配置会话，所有会话的构造错误合并返回
func New(cfg *config.Config, registry exchange.Registry, consumers model.Consumers, logger *zap.Logger, m *metrics.Metrics) (*Supervisor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{
		logger:    logger.Named("supervisor"),
		scheduler: heartbeat.New(cfg.Heartbeat.BaseInterval(), logger, heartbeat.WithPrintInterval(cfg.Heartbeat.PrintInterval)),
		dispatcher: dispatch.New(dispatch.Config{
			Workers:   cfg.Dispatcher.Workers,
			QueueSize: cfg.Dispatcher.QueueSize,
		}, logger, m),
	}

	var errs error
	for i, sc := range cfg.Sessions {
		adapter, err := registry.New(sc.Platform)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sessions[%d]: %w", i, err))
			continue
		}
		sess, err := session.New(session.Config{
			URL:              sc.WSS,
			Symbols:          sc.Symbols,
			Channels:         sc.ChannelKinds(),
			OrderBookLength:  sc.OrderBookLength,
			PingInterval:     sc.PingInterval,
			CheckInterval:    sc.CheckInterval,
			StaleAfter:       sc.StaleAfter(),
			HandshakeTimeout: sc.HandshakeTimeout(),
			SubscribeRate:    sc.SubscribeRatePerSec,
		}, adapter, session.Deps{
			Scheduler:  s.scheduler,
			Dispatcher: s.dispatcher,
			Consumers:  consumers,
			Logger:     logger,
			Metrics:    m,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sessions[%d]: %w", i, err))
			continue
		}
		s.sessions = append(s.sessions, sess)
	}
	if errs != nil {
		return nil, errs
	}
	return s, nil
}

// Run 启动调度器与分发器，并发运行全部会话
// 所有会话退出后关闭分发器，返回各会话的致命错误
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.dispatcher.Start(ctx)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		s.scheduler.Run(ctx)
	}()

	s.logger.Info("启动会话", zap.Int("sessions", len(s.sessions)))

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, sess := range s.sessions {
		wg.Add(1)
		go func(sess *session.Session) {
			defer wg.Done()
			if err := sess.Run(ctx); err != nil {
				s.logger.Error("会话异常退出", zap.String("platform", sess.Platform()), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", sess.Platform(), err))
				mu.Unlock()
			}
		}(sess)
	}
	wg.Wait()

	cancel()
	<-schedDone
	s.scheduler.Wait()
	s.dispatcher.Close()
	s.logger.Info("全部会话已退出")
	return errs
}

// Sessions 返回全部会话
func (s *Supervisor) Sessions() []*session.Session {
	return s.sessions
}

// Metrics 返回全部会话的连接指标快照
func (s *Supervisor) Metrics() []session.ConnectionMetrics {
	out := make([]session.ConnectionMetrics, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Metrics())
	}
	return out
}

// Dropped 分发器累计丢弃的任务数
func (s *Supervisor) Dropped() uint64 {
	return s.dispatcher.Dropped()
}
