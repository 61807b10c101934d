package jsonl

import (
	"context"
	"path/filepath"

	"go.uber.org/multierr"

	"market-stream-reconciler/internal/core/model"
)

// 输出文件名
const (
	OrderBookFile = "orderbook.jsonl"
	TradeFile     = "trade.jsonl"
	KlineFile     = "kline.jsonl"
)

// Sink 按数据类型分别写入 JSONL 文件的消费者集合
type Sink struct {
	books  *Writer
	trades *Writer
	klines *Writer
}

// NewSink 在 dir 下创建 orderbook/trade/kline 三个写入器
func NewSink(dir string, opts Options) (*Sink, error) {
	var (
		s    Sink
		errs error
		err  error
	)
	s.books, err = NewWriter(filepath.Join(dir, OrderBookFile), opts)
	errs = multierr.Append(errs, err)
	s.trades, err = NewWriter(filepath.Join(dir, TradeFile), opts)
	errs = multierr.Append(errs, err)
	s.klines, err = NewWriter(filepath.Join(dir, KlineFile), opts)
	errs = multierr.Append(errs, err)
	if errs != nil {
		s.Close()
		return nil, errs
	}
	return &s, nil
}

// Consumers 返回写入三个文件的消费者
func (s *Sink) Consumers() model.Consumers {
	return model.Consumers{
		OrderBook: []model.BookConsumer{func(_ context.Context, ob *model.OrderBook) error {
			return s.books.Write(ob)
		}},
		Trade: []model.TradeConsumer{func(_ context.Context, t *model.Trade) error {
			return s.trades.Write(t)
		}},
		Kline: []model.KlineConsumer{func(_ context.Context, k *model.Kline) error {
			return s.klines.Write(k)
		}},
	}
}

// Close 关闭全部写入器
func (s *Sink) Close() error {
	var errs error
	for _, w := range []*Writer{s.books, s.trades, s.klines} {
		errs = multierr.Append(errs, w.Close())
	}
	return errs
}
