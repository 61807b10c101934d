// Package book 维护单个交易对的订单簿状态。
// 由全量快照初始化，随后逐条合并增量；每次变更后用交易所提供的校验器验证。
// Book 只由所属会话的读取 goroutine 修改，不做并发保护。
package book

import (
	"errors"
	"fmt"
	"sort"

	"market-stream-reconciler/internal/core/checksum"
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/util/fastparse"
)

// DefaultDepth 对外发布的默认档位数
const DefaultDepth = 10

var (
	// ErrChecksumMismatch 本地状态与服务端校验值不一致
	ErrChecksumMismatch = errors.New("订单簿校验失败")
	// ErrNoSnapshot 收到增量时尚未建立快照
	ErrNoSnapshot = errors.New("订单簿尚未收到全量快照")
)

// Options 订单簿参数
type Options struct {
	// Depth 对外发布的每侧档位数（orderbook_length），内部状态不截断
	Depth int
	// Verifier 完整性校验器，为空时不校验
	Verifier checksum.Verifier
	// IsZero 判断数量是否为删除标记，为空时按数值是否为 0 判断
	IsZero func(size string) bool
}

// Book 单个交易对的订单簿
type Book struct {
	// platform 交易所标识
	platform string
	// symbol 交易对
	symbol string
	// opts 参数
	opts Options
	// bids 买盘，价格降序
	bids []model.Level
	// asks 卖盘，价格升序
	asks []model.Level
	// timestamp 最近一次更新的交易所时间戳
	timestamp int64
	// ready 是否已收到快照
	ready bool
	// verified 最近一次校验是否通过
	verified bool
}

// New 创建订单簿
func New(platform, symbol string, opts Options) *Book {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Verifier == nil {
		opts.Verifier = checksum.NopVerifier{}
	}
	if opts.IsZero == nil {
		opts.IsZero = IsNumericZero
	}
	return &Book{platform: platform, symbol: symbol, opts: opts}
}

// ApplySnapshot 用全量快照替换订单簿
// 校验失败时快照仍然生效，返回 ErrChecksumMismatch
func (b *Book) ApplySnapshot(bids, asks []model.Level, timestamp int64, digest model.Digest) error {
	b.bids = b.normalize(bids, true)
	b.asks = b.normalize(asks, false)
	b.timestamp = timestamp
	b.ready = true
	return b.verify("snapshot", digest)
}

// ApplyDiff 合并增量
// 同价位存在时替换数量（数量为零则删除），不存在且数量非零时插入。
// 校验失败时合并结果保留，返回 ErrChecksumMismatch
func (b *Book) ApplyDiff(bids, asks []model.Level, timestamp int64, digest model.Digest) error {
	if !b.ready {
		return fmt.Errorf("%s %s: %w", b.platform, b.symbol, ErrNoSnapshot)
	}
	for _, l := range bids {
		b.bids = b.merge(b.bids, l, true)
	}
	for _, l := range asks {
		b.asks = b.merge(b.asks, l, false)
	}
	if timestamp != 0 {
		b.timestamp = timestamp
	}
	return b.verify("update", digest)
}

// PublishedView 返回每侧截断到 Depth 档的深拷贝
func (b *Book) PublishedView() *model.OrderBook {
	return b.State().Truncate(b.opts.Depth)
}

// State 返回完整内部状态的深拷贝
func (b *Book) State() *model.OrderBook {
	ob := &model.OrderBook{
		Platform:  b.platform,
		Symbol:    b.symbol,
		Bids:      make([]model.Level, len(b.bids)),
		Asks:      make([]model.Level, len(b.asks)),
		Timestamp: b.timestamp,
	}
	copy(ob.Bids, b.bids)
	copy(ob.Asks, b.asks)
	return ob
}

// Reset 清空状态，等待下一次快照
func (b *Book) Reset() {
	b.bids = nil
	b.asks = nil
	b.timestamp = 0
	b.ready = false
	b.verified = false
}

// Ready 是否已建立快照
func (b *Book) Ready() bool { return b.ready }

// Verified 最近一次校验是否通过
func (b *Book) Verified() bool { return b.verified }

// Len 返回两侧内部档位数
func (b *Book) Len() (bids, asks int) { return len(b.bids), len(b.asks) }

// Depth 返回对外发布的档位数
func (b *Book) Depth() int { return b.opts.Depth }

func (b *Book) verify(stage string, digest model.Digest) error {
	b.verified = b.opts.Verifier.Verify(b.bids, b.asks, digest)
	if !b.verified {
		return fmt.Errorf("%s %s %s: %w", b.platform, b.symbol, stage, ErrChecksumMismatch)
	}
	return nil
}

// normalize 去掉零档位，同价位以后出现的为准，并按方向排序
func (b *Book) normalize(src []model.Level, desc bool) []model.Level {
	out := make([]model.Level, 0, len(src))
	for _, l := range src {
		out = b.merge(out, l, desc)
	}
	return out
}

// merge 在有序切片中更新单个价位，保持顺序
func (b *Book) merge(side []model.Level, l model.Level, desc bool) []model.Level {
	i, found := search(side, l.Price, desc)
	zero := b.opts.IsZero(l.Size)
	switch {
	case found && zero:
		return append(side[:i], side[i+1:]...)
	case found:
		side[i].Size = l.Size
		return side
	case zero:
		return side
	}
	side = append(side, model.Level{})
	copy(side[i+1:], side[i:])
	side[i] = l
	return side
}

// search 二分查找价格位置，返回插入点以及是否已存在
func search(side []model.Level, price string, desc bool) (int, bool) {
	i := sort.Search(len(side), func(j int) bool {
		c := fastparse.ComparePrice(side[j].Price, price)
		if desc {
			return c <= 0
		}
		return c >= 0
	})
	return i, i < len(side) && fastparse.ComparePrice(side[i].Price, price) == 0
}

// IsNumericZero 数量按数值判断是否为零，无法解析时视为非零
func IsNumericZero(size string) bool {
	n, err := fastparse.ParseNumber(size)
	return err == nil && n.Float() == 0
}

// IsStringZero 仅字符串 "0" 视为删除标记（OKX）
func IsStringZero(size string) bool {
	return size == "0"
}
