// Package main 是行情流对账服务的入口点。
// 按配置连接各交易所公共行情频道，由快照与增量重建订单簿并校验，
// 把截断后的订单簿、成交与 K 线交给 JSONL 文件与 Kafka 输出。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"market-stream-reconciler/internal/config"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/core/store"
	"market-stream-reconciler/internal/exchange/all"
	"market-stream-reconciler/internal/logging"
	"market-stream-reconciler/internal/metrics"
	"market-stream-reconciler/internal/output/jsonl"
	"market-stream-reconciler/internal/output/kafka"
	"market-stream-reconciler/internal/session"
	"market-stream-reconciler/internal/supervisor"
	"market-stream-reconciler/internal/util/timeutil"
)

type metricsSnapshot struct {
	// TsUnixNs 指标采集时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// Sessions 各会话连接指标
	Sessions []session.ConnectionMetrics `json:"sessions"`
	// DispatchDropped 分发队列累计丢弃数
	DispatchDropped uint64 `json:"dispatch_dropped"`
	// Books 缓存的订单簿数量
	Books int `json:"books"`
}

func main() {
	var configPath, envPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&envPath, "env", ".env", ".env 文件路径")
	flag.Parse()

	if err := config.LoadDotEnv(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载环境变量失败: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
	}).Named(cfg.App.Name)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics 服务退出", zap.Error(err))
			}
		}()
	}

	outputs, closers, err := buildOutputs(cfg, logger)
	if err != nil {
		logger.Error("创建输出失败", zap.Error(err))
		os.Exit(1)
	}

	bookStore := store.New()
	consumers := model.Consumers{
		OrderBook: []model.BookConsumer{bookStore.Dedupe(outputs.OrderBook...)},
		Trade:     outputs.Trade,
		Kline:     outputs.Kline,
	}
	if len(consumers.Trade) == 0 {
		consumers.Trade = []model.TradeConsumer{logTrade(logger)}
	}
	if len(consumers.Kline) == 0 {
		consumers.Kline = []model.KlineConsumer{logKline(logger)}
	}

	sup, err := supervisor.New(cfg, all.Registry(), consumers, logger, m)
	if err != nil {
		logger.Error("创建会话失败", zap.Error(err))
		os.Exit(1)
	}

	var metricsWriter *jsonl.Writer
	if cfg.Output.JSONLEnabled && cfg.Output.MetricsIntervalMs > 0 {
		metricsWriter, err = jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "metrics.jsonl"), jsonl.Options{
			BufferSize: cfg.Output.BufferSize,
			MaxSizeMB:  cfg.Output.RotateMaxSizeMB,
		})
		if err != nil {
			logger.Error("创建 metrics writer 失败", zap.Error(err))
			os.Exit(1)
		}
		closers = append(closers, metricsWriter.Close)
		go runMetricsLoop(ctx, metricsWriter, sup, bookStore, cfg.Output.MetricsInterval())
	}

	runErr := sup.Run(ctx)
	if runErr != nil {
		logger.Error("会话异常退出", zap.Error(runErr))
	}

	// 输出最后一条 metrics 快照（便于离线复盘）
	if metricsWriter != nil {
		_ = metricsWriter.Write(snapshot(sup, bookStore))
		_ = metricsWriter.Flush()
	}

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("关闭输出失败", zap.Error(err))
			}
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// buildOutputs 按配置创建 JSONL 与 Kafka 输出，返回合并后的消费者以及关闭函数
func buildOutputs(cfg *config.Config, logger *zap.Logger) (model.Consumers, []func() error, error) {
	var (
		consumers model.Consumers
		closers   []func() error
	)
	if cfg.Output.JSONLEnabled {
		sink, err := jsonl.NewSink(cfg.Output.Dir, jsonl.Options{
			BufferSize: cfg.Output.BufferSize,
			MaxSizeMB:  cfg.Output.RotateMaxSizeMB,
		})
		if err != nil {
			return consumers, nil, err
		}
		consumers = consumers.Merge(sink.Consumers())
		closers = append(closers, sink.Close)
	}
	if cfg.Kafka.Enabled {
		sink, err := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return consumers, nil, err
		}
		consumers = consumers.Merge(sink.Consumers())
		closers = append(closers, sink.Close)
	}
	return consumers, closers, nil
}

func runMetricsLoop(ctx context.Context, w *jsonl.Writer, sup *supervisor.Supervisor, bookStore *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.Write(snapshot(sup, bookStore))
			_ = w.Flush()
		}
	}
}

func snapshot(sup *supervisor.Supervisor, bookStore *store.Store) metricsSnapshot {
	return metricsSnapshot{
		TsUnixNs:        timeutil.NowNano(),
		Sessions:        sup.Metrics(),
		DispatchDropped: sup.Dropped(),
		Books:           bookStore.Len(),
	}
}

func logTrade(logger *zap.Logger) model.TradeConsumer {
	return func(_ context.Context, t *model.Trade) error {
		logger.Debug("成交", zap.String("platform", t.Platform), zap.String("symbol", t.Symbol),
			zap.String("side", t.Side), zap.String("price", t.Price), zap.String("quantity", t.Quantity))
		return nil
	}
}

func logKline(logger *zap.Logger) model.KlineConsumer {
	return func(_ context.Context, k *model.Kline) error {
		logger.Debug("K 线", zap.String("platform", k.Platform), zap.String("symbol", k.Symbol),
			zap.String("close", k.Close), zap.Int64("timestamp", k.Timestamp))
		return nil
	}
}
