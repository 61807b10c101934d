// Package logging 构建进程日志记录器。
// 使用 zap 生产配置（JSON、ISO8601 时间），可选追加按大小滚动的日志文件。
package logging

import (
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志参数
type Options struct {
	// Level 日志级别: debug, info, warn, error
	Level string
	// File 日志文件路径，为空时只输出到标准输出
	File string
	// MaxSizeMB 单个日志文件大小上限
	MaxSizeMB int
	// MaxBackups 保留的历史文件数
	MaxBackups int
}

// New 创建日志记录器
func New(opts Options) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(opts.Level); err != nil {
		lvl = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atom),
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), atom))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Sampler 日志采样：每 every 次事件最多放行一次，且两次放行至少间隔 minGap
type Sampler struct {
	every  uint64
	minGap time.Duration

	count  uint64
	lastNs int64
}

// NewSampler 创建采样器
func NewSampler(every uint64, minGap time.Duration) *Sampler {
	if every == 0 {
		every = 1
	}
	return &Sampler{every: every, minGap: minGap}
}

// Allow 记录一次事件，返回累计次数以及本次是否应输出日志
func (s *Sampler) Allow() (uint64, bool) {
	count := atomic.AddUint64(&s.count, 1)
	if count%s.every != 0 {
		return count, false
	}
	nowNs := time.Now().UnixNano()
	last := atomic.LoadInt64(&s.lastNs)
	if last > 0 && nowNs-last < int64(s.minGap) {
		return count, false
	}
	if !atomic.CompareAndSwapInt64(&s.lastNs, last, nowNs) {
		return count, false
	}
	return count, true
}

// Count 累计事件数
func (s *Sampler) Count() uint64 {
	return atomic.LoadUint64(&s.count)
}

// Sample 截取原始数据前 n 字节用于日志
func Sample(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
