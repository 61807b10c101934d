// Package model 定义行情流中使用的核心数据结构。
// 包含订单簿、成交、K 线以及会话内部流转的消息信封。
package model

import "encoding/json"

// Platform 交易所标识常量
const (
	// PlatformOKX OKX V5 公共行情
	PlatformOKX = "okx"
	// PlatformFTX FTX 公共行情
	PlatformFTX = "ftx"
	// PlatformGate Gate.io USDT 永续
	PlatformGate = "gateio"
	// PlatformBybit Bybit 反向永续
	PlatformBybit = "bybit"
	// PlatformHuobi Huobi USDT 永续
	PlatformHuobi = "huobi"
	// PlatformBinance Binance USDT 永续
	PlatformBinance = "binance"
)

// Level 订单簿深度档位
// 价格和数量保留交易所原始的十进制字符串，避免浮点误差影响校验和
type Level struct {
	// Price 价格
	Price string
	// Size 数量
	Size string
}

// MarshalJSON 按交易所习惯输出为 [price, size]
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price, l.Size})
}

// OrderBook 对外发布的订单簿视图
// 买盘按价格降序，卖盘按价格升序；同一侧价格唯一，不含数量为零的档位
type OrderBook struct {
	// Platform 交易所标识
	Platform string `json:"platform"`
	// Symbol 交易对（交易所原生格式）
	Symbol string `json:"symbol"`
	// Bids 买盘档位
	Bids []Level `json:"bids"`
	// Asks 卖盘档位
	Asks []Level `json:"asks"`
	// Timestamp 交易所时间戳（毫秒）
	Timestamp int64 `json:"timestamp"`
}

// Clone 创建 OrderBook 的深拷贝
func (b *OrderBook) Clone() *OrderBook {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Bids = cloneLevels(b.Bids)
	clone.Asks = cloneLevels(b.Asks)
	return &clone
}

// Truncate 返回每侧最多 n 档的深拷贝
// n <= 0 时不截断
func (b *OrderBook) Truncate(n int) *OrderBook {
	clone := b.Clone()
	if clone == nil || n <= 0 {
		return clone
	}
	if len(clone.Bids) > n {
		clone.Bids = clone.Bids[:n:n]
	}
	if len(clone.Asks) > n {
		clone.Asks = clone.Asks[:n:n]
	}
	return clone
}

// BestBid 返回买一档，不存在时 ok 为 false
func (b *OrderBook) BestBid() (Level, bool) {
	if b == nil || len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk 返回卖一档，不存在时 ok 为 false
func (b *OrderBook) BestAsk() (Level, bool) {
	if b == nil || len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Equal 比较两个订单簿的档位与时间戳是否一致
func (b *OrderBook) Equal(o *OrderBook) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.Platform != o.Platform || b.Symbol != o.Symbol || b.Timestamp != o.Timestamp {
		return false
	}
	return levelsEqual(b.Bids, o.Bids) && levelsEqual(b.Asks, o.Asks)
}

// SameLevels 只比较档位，忽略时间戳
func (b *OrderBook) SameLevels(o *OrderBook) bool {
	if b == nil || o == nil {
		return b == o
	}
	return levelsEqual(b.Bids, o.Bids) && levelsEqual(b.Asks, o.Asks)
}

func cloneLevels(src []Level) []Level {
	if src == nil {
		return nil
	}
	dst := make([]Level, len(src))
	copy(dst, src)
	return dst
}

func levelsEqual(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
