package checksum

import (
	"market-stream-reconciler/internal/core/model"
	"market-stream-reconciler/internal/util/fastparse"
)

// Verifier 订单簿完整性校验器，由各交易所适配器提供
type Verifier interface {
	// Verify 校验当前状态，bids 降序、asks 升序
	Verify(bids, asks []model.Level, expected model.Digest) bool
}

// CRC32Verifier 基于交错 CRC32 的校验器
type CRC32Verifier struct {
	// Depth 参与校验的档位数
	Depth int
	// Format 档位格式化函数
	Format Formatter
	// Fold 折叠函数
	Fold Fold
}

// NewOKXVerifier OKX V5 校验器
func NewOKXVerifier() *CRC32Verifier {
	return &CRC32Verifier{Depth: OKXDepth, Format: RawFormat, Fold: FoldSigned32}
}

// NewFTXVerifier FTX 校验器
func NewFTXVerifier() *CRC32Verifier {
	return &CRC32Verifier{Depth: FTXDepth, Format: FloatFormat, Fold: FoldNone}
}

// Compute 计算当前状态的校验值
func (v *CRC32Verifier) Compute(bids, asks []model.Level) int64 {
	return v.Fold(CRC32(bids, asks, v.Depth, v.Format))
}

// Verify 推送不带校验值时视为通过
func (v *CRC32Verifier) Verify(bids, asks []model.Level, expected model.Digest) bool {
	if !expected.Present {
		return true
	}
	return v.Compute(bids, asks) == expected.Value
}

// CrossedBookVerifier 不提供校验值的交易所使用：买一价必须低于卖一价
type CrossedBookVerifier struct{}

// Verify 任一侧为空时视为通过
func (CrossedBookVerifier) Verify(bids, asks []model.Level, _ model.Digest) bool {
	if len(bids) == 0 || len(asks) == 0 {
		return true
	}
	return fastparse.ComparePrice(bids[0].Price, asks[0].Price) < 0
}

// NopVerifier 不做校验
type NopVerifier struct{}

// Verify 总是通过
func (NopVerifier) Verify([]model.Level, []model.Level, model.Digest) bool { return true }
