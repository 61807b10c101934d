// Package dispatch 把会话发布的数据分发给下游消费者。
// 每个消费者的每次调用是一个独立任务，进入有界队列由固定数量的 worker 执行；
// 队列满时丢弃并计数，不阻塞会话的读取循环。
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"market-stream-reconciler/internal/logging"
	"market-stream-reconciler/internal/metrics"
)

// Config 分发器参数
type Config struct {
	// Workers worker 数量
	Workers int
	// QueueSize 队列容量
	QueueSize int
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher 有界队列 + worker 池
type Dispatcher struct {
	// cfg 参数
	cfg Config
	// logger 日志记录器
	logger *zap.Logger
	// metrics 指标，可为空
	metrics *metrics.Metrics
	// jobs 任务队列
	jobs chan job

	// sendMu 保证 Close 之后不再向 jobs 发送
	sendMu sync.RWMutex
	// closed 是否已关闭
	closed int32
	// started 是否已启动
	started int32
	wg      sync.WaitGroup

	// dropped 丢弃计数（用于采样日志）
	dropped *logging.Sampler
	// failed 消费者失败计数（用于采样日志）
	failed *logging.Sampler
}

// New 创建分发器
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Dispatcher{
		cfg:     cfg,
		logger:  logger.Named("dispatch"),
		metrics: m,
		jobs:    make(chan job, cfg.QueueSize),
		dropped: logging.NewSampler(100, time.Minute),
		failed:  logging.NewSampler(1, time.Second),
	}
}

// Start 启动 worker，消费者调用使用 ctx
// 重复调用无效
func (d *Dispatcher) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return
	}
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info("分发器启动", zap.Int("workers", d.cfg.Workers), zap.Int("queue_size", d.cfg.QueueSize))
}

// Enqueue 非阻塞投递任务，队列已满或已关闭时返回 false
func (d *Dispatcher) Enqueue(name string, run func(ctx context.Context) error) bool {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if atomic.LoadInt32(&d.closed) == 1 {
		return false
	}

	select {
	case d.jobs <- job{name: name, run: run}:
		if d.metrics != nil {
			d.metrics.DispatchQueued.WithLabelValues(name).Inc()
			d.metrics.QueueDepth.Set(float64(len(d.jobs)))
		}
		return true
	default:
	}

	if d.metrics != nil {
		d.metrics.DispatchDropped.WithLabelValues(name).Inc()
	}
	if count, ok := d.dropped.Allow(); ok {
		d.logger.Warn("分发队列已满，丢弃任务（采样）",
			zap.String("consumer", name),
			zap.Uint64("dropped_total", count),
			zap.Int("queue_size", d.cfg.QueueSize),
		)
	}
	return false
}

// Dropped 累计丢弃的任务数
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Count()
}

// Pending 队列中等待的任务数
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Close 停止接收新任务，等待队列中的任务执行完毕
func (d *Dispatcher) Close() {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return
	}
	d.sendMu.Lock()
	close(d.jobs)
	d.sendMu.Unlock()

	if atomic.LoadInt32(&d.started) == 0 {
		// 未启动时丢弃积压任务
		for range d.jobs {
		}
		return
	}
	d.wg.Wait()
	d.logger.Info("分发器已关闭")
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		if d.metrics != nil {
			d.metrics.QueueDepth.Set(float64(len(d.jobs)))
		}
		d.exec(ctx, j)
	}
}

func (d *Dispatcher) exec(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(j.name, fmt.Errorf("消费者 panic: %v", r))
		}
	}()
	if err := j.run(ctx); err != nil {
		d.fail(j.name, err)
	}
}

func (d *Dispatcher) fail(name string, err error) {
	if d.metrics != nil {
		d.metrics.ConsumerErrors.WithLabelValues(name).Inc()
	}
	if count, ok := d.failed.Allow(); ok {
		d.logger.Error("消费者执行失败", zap.String("consumer", name), zap.Uint64("failures_total", count), zap.Error(err))
	}
}

// Publish 为每个消费者投递一个独立任务，每个任务拿到 clone 生成的独立副本
// clone 为空时直接共享 v（v 必须不可变）。返回成功入队的任务数
func Publish[T any, C ~func(context.Context, T) error](d *Dispatcher, name string, consumers []C, v T, clone func(T) T) int {
	accepted := 0
	for i, c := range consumers {
		consumer := c
		value := v
		if clone != nil {
			value = clone(v)
		}
		if d.Enqueue(fmt.Sprintf("%s#%d", name, i), func(ctx context.Context) error {
			return consumer(ctx, value)
		}) {
			accepted++
		}
	}
	return accepted
}
