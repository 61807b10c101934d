// Package timeutil 提供单调递增的 Unix 时间戳。
// 会话用它记录最后收帧、心跳发送时间，计算链路空闲时长与往返时延。
package timeutil

import (
	"time"
)

var (
	// baseTime 进程启动时刻（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 启动时刻对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 当前 Unix 纳秒时间戳
// 由启动时的墙钟加上单调时钟经过的时长得出，系统时间跳变不会让差值变为负数
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NanoToMs 纳秒转毫秒
func NanoToMs(ns int64) int64 {
	return ns / 1_000_000
}

// SinceNano 从 startNs 到现在经过的时长
func SinceNano(startNs int64) time.Duration {
	return time.Duration(NowNano() - startNs)
}
