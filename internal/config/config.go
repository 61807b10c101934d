// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括日志、心跳调度、分发器、交易所会话与输出设置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"market-stream-reconciler/internal/core/model"
)

// EnvPrefix 环境变量前缀，STREAMER_<PLATFORM>_WSS 覆盖对应交易所的连接地址
const EnvPrefix = "STREAMER_"

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Heartbeat 心跳调度配置
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	// Dispatcher 分发器配置
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	// Sessions 交易所会话列表
	Sessions []SessionConfig `yaml:"sessions"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Kafka Kafka 输出配置
	Kafka KafkaConfig `yaml:"kafka"`
	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFile 日志文件路径，为空时只输出到标准输出
	LogFile string `yaml:"log_file"`
	// LogMaxSizeMB 单个日志文件最大大小（MB）
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxBackups 保留的历史日志文件数
	LogMaxBackups int `yaml:"log_max_backups"`
}

// HeartbeatConfig 心跳调度配置
type HeartbeatConfig struct {
	// BaseIntervalMs 调度器基准周期（毫秒），会话的心跳间隔以该周期为单位
	BaseIntervalMs int `yaml:"base_interval_ms"`
	// PrintInterval 每隔多少次 tick 输出一次计数日志，0 表示不输出
	PrintInterval int `yaml:"print_interval"`
}

// DispatcherConfig 分发器配置
type DispatcherConfig struct {
	// Workers worker 数量
	Workers int `yaml:"workers"`
	// QueueSize 有界队列容量
	QueueSize int `yaml:"queue_size"`
}

// SessionConfig 单个交易所会话配置
type SessionConfig struct {
	// Platform 交易所标识: okx, ftx, gateio, bybit, huobi, binance
	Platform string `yaml:"platform"`
	// WSS 连接地址，为空时使用适配器默认地址
	WSS string `yaml:"wss"`
	// Symbols 交易所原生交易对
	Symbols []string `yaml:"symbols"`
	// Channels 订阅频道: orderbook, trade, kline
	Channels []string `yaml:"channels"`
	// OrderBookLength 发布的订单簿深度
	OrderBookLength int `yaml:"orderbook_length"`
	// PingInterval 心跳发送间隔（tick 数）
	PingInterval int `yaml:"ping_interval"`
	// CheckInterval 链路检查间隔（tick 数）
	CheckInterval int `yaml:"check_interval"`
	// StaleAfterMs 超过该时长未收到任何帧视为链路失效（毫秒），0 表示不检查
	StaleAfterMs int `yaml:"stale_after_ms"`
	// HandshakeTimeoutMs 握手超时（毫秒）
	HandshakeTimeoutMs int `yaml:"handshake_timeout_ms"`
	// SubscribeRatePerSec 每秒最多发送的订阅帧数，0 表示不限速
	SubscribeRatePerSec float64 `yaml:"subscribe_rate_per_sec"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// JSONLEnabled 是否输出 JSON Lines 文件
	JSONLEnabled bool `yaml:"jsonl_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
	// RotateMaxSizeMB 单个输出文件最大大小（MB）
	RotateMaxSizeMB int `yaml:"rotate_max_size_mb"`
	// MetricsIntervalMs 连接指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
}

// KafkaConfig Kafka 输出配置
type KafkaConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// Brokers broker 地址列表
	Brokers []string `yaml:"brokers"`
	// Topic 写入的 topic
	Topic string `yaml:"topic"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Listen 监听地址，为空时不启动 HTTP 服务
	Listen string `yaml:"listen"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析 YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	cfg.setDefaults()

	// 环境变量覆盖
	cfg.ApplyEnv(os.Getenv)

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv 加载 .env 文件到进程环境变量，文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv 用 STREAMER_<PLATFORM>_WSS 覆盖会话连接地址
func (c *Config) ApplyEnv(getenv func(string) string) {
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if v := getenv(EnvKey(s.Platform)); v != "" {
			s.WSS = v
		}
	}
}

// EnvKey 返回交易所连接地址对应的环境变量名
func EnvKey(platform string) string {
	return EnvPrefix + strings.ToUpper(platform) + "_WSS"
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	// 应用默认值
	if c.App.Name == "" {
		c.App.Name = "market-stream-reconciler"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogMaxSizeMB == 0 {
		c.App.LogMaxSizeMB = 100
	}
	if c.App.LogMaxBackups == 0 {
		c.App.LogMaxBackups = 5
	}

	// 心跳调度默认值
	if c.Heartbeat.BaseIntervalMs == 0 {
		c.Heartbeat.BaseIntervalMs = 1000 // 1 秒
	}

	// 分发器默认值
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = 4
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = 1024
	}

	// 会话默认值
	for i := range c.Sessions {
		s := &c.Sessions[i]
		s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
		if s.OrderBookLength == 0 {
			s.OrderBookLength = 10
		}
		if s.PingInterval == 0 {
			s.PingInterval = 15 // 15 个 tick
		}
		if s.CheckInterval == 0 {
			s.CheckInterval = 10
		}
		if s.HandshakeTimeoutMs == 0 {
			s.HandshakeTimeoutMs = 10000 // 10 秒
		}
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000 // 10 秒
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Output.RotateMaxSizeMB == 0 {
		c.Output.RotateMaxSizeMB = 512
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证会话配置
	if len(c.Sessions) == 0 {
		errs = append(errs, "sessions: 至少需要配置一个交易所会话")
	}
	for i, s := range c.Sessions {
		errs = append(errs, s.validate(fmt.Sprintf("sessions[%d]", i))...)
	}

	// 验证心跳与分发器
	if c.Heartbeat.BaseIntervalMs <= 0 {
		errs = append(errs, "heartbeat.base_interval_ms: 基准周期必须为正数")
	}
	if c.Heartbeat.PrintInterval < 0 {
		errs = append(errs, "heartbeat.print_interval: 不能为负数")
	}
	if c.Dispatcher.Workers <= 0 {
		errs = append(errs, "dispatcher.workers: worker 数量必须为正数")
	}
	if c.Dispatcher.QueueSize <= 0 {
		errs = append(errs, "dispatcher.queue_size: 队列容量必须为正数")
	}

	// 验证输出
	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}
	if c.Output.MetricsIntervalMs < 0 {
		errs = append(errs, "output.metrics_interval_ms: 不能为负数")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers: 启用 Kafka 时至少需要一个 broker")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic: 启用 Kafka 时 topic 不能为空")
		}
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func (s SessionConfig) validate(field string) []string {
	var errs []string
	if s.Platform == "" {
		errs = append(errs, field+".platform: 交易所不能为空")
	}
	if len(s.Symbols) == 0 {
		errs = append(errs, field+".symbols: 至少需要配置一个交易对")
	}
	for i, sym := range s.Symbols {
		if strings.TrimSpace(sym) == "" {
			errs = append(errs, fmt.Sprintf("%s.symbols[%d]: 交易对不能为空", field, i))
		}
	}
	if len(s.Channels) == 0 {
		errs = append(errs, field+".channels: 至少需要配置一个频道")
	}
	for i, ch := range s.Channels {
		if _, ok := model.ParseChannelKind(ch); !ok {
			errs = append(errs, fmt.Sprintf("%s.channels[%d]: 无效的频道 '%s'，有效值: orderbook, trade, kline", field, i, ch))
		}
	}
	if s.OrderBookLength <= 0 {
		errs = append(errs, field+".orderbook_length: 必须为正数")
	}
	if s.PingInterval < 0 {
		errs = append(errs, field+".ping_interval: 不能为负数")
	}
	if s.CheckInterval < 0 {
		errs = append(errs, field+".check_interval: 不能为负数")
	}
	if s.StaleAfterMs < 0 {
		errs = append(errs, field+".stale_after_ms: 不能为负数")
	}
	if s.SubscribeRatePerSec < 0 {
		errs = append(errs, field+".subscribe_rate_per_sec: 不能为负数")
	}
	return errs
}

// ChannelKinds 返回解析后的频道，无效频道被跳过（Validate 已拒绝）
func (s SessionConfig) ChannelKinds() []model.ChannelKind {
	out := make([]model.ChannelKind, 0, len(s.Channels))
	for _, ch := range s.Channels {
		if kind, ok := model.ParseChannelKind(ch); ok {
			out = append(out, kind)
		}
	}
	return out
}

// StaleAfter 链路失效阈值
func (s SessionConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterMs) * time.Millisecond
}

// HandshakeTimeout 握手超时
func (s SessionConfig) HandshakeTimeout() time.Duration {
	return time.Duration(s.HandshakeTimeoutMs) * time.Millisecond
}

// BaseInterval 调度器基准周期
func (h HeartbeatConfig) BaseInterval() time.Duration {
	return time.Duration(h.BaseIntervalMs) * time.Millisecond
}

// MetricsInterval 连接指标输出间隔
func (o OutputConfig) MetricsInterval() time.Duration {
	return time.Duration(o.MetricsIntervalMs) * time.Millisecond
}

// Platforms 返回配置中的交易所标识
func (c *Config) Platforms() []string {
	out := make([]string, len(c.Sessions))
	for i, s := range c.Sessions {
		out[i] = s.Platform
	}
	return out
}
