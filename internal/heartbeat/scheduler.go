// Package heartbeat 实现进程内共享的心跳调度器。
// 调度器按固定基准周期递增计数，计数能被任务间隔整除时异步触发该任务。
// 触发相位以调度器启动为准，与任务注册时间无关。
package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Call 单次触发的上下文
type Call struct {
	// TaskID 注册时返回的任务 ID
	TaskID uuid.UUID
	// Count 触发时的心跳计数
	Count uint64
	// Args 注册时传入的参数
	Args []any
}

// Func 心跳任务
type Func func(ctx context.Context, call Call)

type task struct {
	id       uuid.UUID
	fn       Func
	interval uint64
	args     []any
}

// Scheduler 心跳调度器
type Scheduler struct {
	// period 基准周期
	period time.Duration
	// printInterval 每隔多少次心跳输出一次计数日志，0 表示不输出
	printInterval uint64
	// logger 日志记录器
	logger *zap.Logger

	// mu 保护 tasks
	mu sync.Mutex
	// tasks 已注册任务
	tasks map[uuid.UUID]*task
	// count 心跳计数
	count uint64
	// wg 跟踪执行中的任务
	wg sync.WaitGroup
}

// Option 调度器选项
type Option func(*Scheduler)

// WithPrintInterval 设置计数日志的输出间隔
func WithPrintInterval(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.printInterval = uint64(n)
		}
	}
}

// New 创建调度器
// 参数 period: 基准周期，<= 0 时取 1 秒
func New(period time.Duration, logger *zap.Logger, opts ...Option) *Scheduler {
	if period <= 0 {
		period = time.Second
	}
	s := &Scheduler{
		period: period,
		logger: logger.Named("heartbeat"),
		tasks:  make(map[uuid.UUID]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 注册任务，计数为 interval 的整数倍时触发
func (s *Scheduler) Register(fn Func, interval int, args ...any) (uuid.UUID, error) {
	if fn == nil {
		return uuid.Nil, fmt.Errorf("心跳任务不能为空")
	}
	if interval <= 0 {
		return uuid.Nil, fmt.Errorf("心跳间隔必须为正数，当前值: %d", interval)
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("生成任务 ID 失败: %w", err)
	}

	s.mu.Lock()
	s.tasks[id] = &task{id: id, fn: fn, interval: uint64(interval), args: args}
	s.mu.Unlock()
	return id, nil
}

// Unregister 注销任务，任务不存在时返回 false
func (s *Scheduler) Unregister(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Tick 推进一次计数并异步触发到期任务，返回新的计数
func (s *Scheduler) Tick(ctx context.Context) uint64 {
	count := atomic.AddUint64(&s.count, 1)

	if s.printInterval > 0 && count%s.printInterval == 0 {
		s.logger.Info("心跳计数", zap.Uint64("count", count))
	}

	s.mu.Lock()
	due := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if count%t.interval == 0 {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.wg.Add(1)
		go s.exec(ctx, t, count)
	}
	return count
}

// Run 按基准周期推进计数，直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("心跳调度器启动", zap.Duration("period", s.period))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Wait 等待所有执行中的任务结束
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Count 当前心跳计数
func (s *Scheduler) Count() uint64 {
	return atomic.LoadUint64(&s.count)
}

// Len 已注册任务数
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) exec(ctx context.Context, t *task, count uint64) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("心跳任务异常",
				zap.String("task_id", t.id.String()),
				zap.Uint64("count", count),
				zap.Any("panic", r),
			)
		}
	}()
	t.fn(ctx, Call{TaskID: t.id, Count: count, Args: t.args})
}
