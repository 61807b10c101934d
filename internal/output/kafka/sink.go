// Package kafka 把订单簿、成交与 K 线写入 Kafka topic。
// 消息 key 为 "platform:symbol"，保证同一交易对落在同一分区；
// 头部携带数据类型与消息 ID。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"market-stream-reconciler/internal/core/model"
)

// 消息头
const (
	HeaderType = "type"
	HeaderID   = "id"
)

// MessageWriter kafka.Writer 的写入接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config Kafka 参数
type Config struct {
	// Brokers broker 地址列表
	Brokers []string
	// Topic 写入的 topic
	Topic string
}

// Sink Kafka 消费者
type Sink struct {
	w      MessageWriter
	logger *zap.Logger
}

// New 创建异步写入的 Kafka 消费者，写入失败记录在日志中
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers 未配置")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic 未配置")
	}
	logger = logger.Named("kafka")
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("写入 Kafka 失败", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	logger.Info("Kafka 输出已初始化", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return NewWithWriter(w, logger), nil
}

// NewWithWriter 使用给定的 MessageWriter 创建消费者
func NewWithWriter(w MessageWriter, logger *zap.Logger) *Sink {
	return &Sink{w: w, logger: logger}
}

// Consumers 返回写入 Kafka 的消费者
func (s *Sink) Consumers() model.Consumers {
	return model.Consumers{
		OrderBook: []model.BookConsumer{func(ctx context.Context, ob *model.OrderBook) error {
			return s.write(ctx, string(model.ChannelOrderBook), ob.Platform, ob.Symbol, ob)
		}},
		Trade: []model.TradeConsumer{func(ctx context.Context, t *model.Trade) error {
			return s.write(ctx, string(model.ChannelTrade), t.Platform, t.Symbol, t)
		}},
		Kline: []model.KlineConsumer{func(ctx context.Context, k *model.Kline) error {
			return s.write(ctx, string(model.ChannelKline), k.Platform, k.Symbol, k)
		}},
	}
}

func (s *Sink) write(ctx context.Context, kind, platform, symbol string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", kind, err)
	}
	msg := kafka.Message{
		Key:   []byte(platform + ":" + symbol),
		Value: data,
		Headers: []kafka.Header{
			{Key: HeaderType, Value: []byte(kind)},
			{Key: HeaderID, Value: []byte(uuid.NewString())},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("写入 Kafka 失败: %w", err)
	}
	return nil
}

// Close 关闭写入器，等待异步消息发送完毕
func (s *Sink) Close() error {
	return s.w.Close()
}
