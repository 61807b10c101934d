// Package metrics 定义 Prometheus 指标并提供 /metrics 服务。
// 每个 Metrics 使用独立的 Registry，便于测试中重复创建。
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "streamer"

// Metrics 进程级指标集合
type Metrics struct {
	// Registry 指标注册表
	Registry *prometheus.Registry

	// Frames 收到的数据帧，按交易所与类型
	Frames *prometheus.CounterVec
	// ParseErrors 解析失败次数
	ParseErrors *prometheus.CounterVec
	// Reconnects 重连次数，按原因
	Reconnects *prometheus.CounterVec
	// ChecksumFailures 订单簿校验失败次数
	ChecksumFailures *prometheus.CounterVec
	// SessionState 会话状态（见 session.State）
	SessionState *prometheus.GaugeVec
	// RTT 心跳往返时延（毫秒）
	RTT *prometheus.GaugeVec

	// DispatchQueued 进入分发队列的任务数
	DispatchQueued *prometheus.CounterVec
	// DispatchDropped 队列已满被丢弃的任务数
	DispatchDropped *prometheus.CounterVec
	// ConsumerErrors 消费者返回错误或 panic 的次数
	ConsumerErrors *prometheus.CounterVec
	// QueueDepth 当前分发队列长度
	QueueDepth prometheus.Gauge
}

// New 创建指标集合并注册到新的 Registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_total", Help: "received frames by platform and kind",
		}, []string{"platform", "kind"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "parse_errors_total", Help: "frames dropped because they could not be decoded",
		}, []string{"platform"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total", Help: "forced reconnects by reason",
		}, []string{"platform", "reason"}),
		ChecksumFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checksum_failures_total", Help: "order book integrity failures",
		}, []string{"platform", "symbol"}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_state", Help: "0=disconnected 1=connecting 2=subscribing 3=live 4=stopped",
		}, []string{"platform"}),
		RTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ws_rtt_ms", Help: "heartbeat round trip in milliseconds",
		}, []string{"platform"}),
		DispatchQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_queued_total", Help: "consumer jobs accepted by the dispatcher",
		}, []string{"consumer"}),
		DispatchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_dropped_total", Help: "consumer jobs dropped because the queue was full",
		}, []string{"consumer"}),
		ConsumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "consumer_errors_total", Help: "consumer failures and panics",
		}, []string{"consumer"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dispatch_queue_depth", Help: "jobs waiting in the dispatcher queue",
		}),
	}

	m.Registry.MustRegister(
		m.Frames, m.ParseErrors, m.Reconnects, m.ChecksumFailures, m.SessionState, m.RTT,
		m.DispatchQueued, m.DispatchDropped, m.ConsumerErrors, m.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve 在 addr 上提供 /metrics，ctx 取消后优雅关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics 服务启动", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
