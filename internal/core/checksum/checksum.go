// Package checksum 实现订单簿完整性校验。
// 取买卖两侧前 k 档，按 "price:size" 交错拼接后计算 CRC32，
// 再由各交易所自己的折叠函数映射到其推送的取值范围。
package checksum

import (
	"hash/crc32"
	"math"
	"strconv"
	"strings"

	"market-stream-reconciler/internal/core/model"
)

// 常用校验深度
const (
	// OKXDepth OKX V5 校验取前 25 档
	OKXDepth = 25
	// FTXDepth FTX 校验取前 100 档
	FTXDepth = 100
)

// Formatter 将一个档位格式化为 "price:size"
type Formatter func(l model.Level) string

// Fold 将无符号 CRC32 映射为交易所推送的校验值
type Fold func(v uint32) int64

// RawFormat 直接使用交易所原始字符串
func RawFormat(l model.Level) string {
	return l.Price + ":" + l.Size
}

// FloatFormat 先按浮点数解析再输出最短表示（与 Python float repr 一致）
// FTX 的校验按此格式计算，例如 "100" 需写作 "100.0"
func FloatFormat(l model.Level) string {
	return PyFloat(l.Price) + ":" + PyFloat(l.Size)
}

// FoldSigned32 把大于 2^31-1 的值折叠到有符号 32 位范围（OKX）
// 等价于 v - 2*(2^31-1) - 2
func FoldSigned32(v uint32) int64 {
	return int64(int32(v))
}

// FoldNone 保持无符号值（FTX）
func FoldNone(v uint32) int64 {
	return int64(v)
}

// Interleave 取两侧前 depth 档，按 bid、ask 交错拼接
// 一侧档位较多时，多出的档位依次追加在末尾
func Interleave(bids, asks []model.Level, depth int, format Formatter) string {
	nb, na := min(len(bids), depth), min(len(asks), depth)
	var sb strings.Builder
	sb.Grow((nb + na) * 24)
	for i := 0; i < max(nb, na); i++ {
		if i < nb {
			if sb.Len() > 0 {
				sb.WriteByte(':')
			}
			sb.WriteString(format(bids[i]))
		}
		if i < na {
			if sb.Len() > 0 {
				sb.WriteByte(':')
			}
			sb.WriteString(format(asks[i]))
		}
	}
	return sb.String()
}

// CRC32 计算交错串的 CRC32（IEEE）
func CRC32(bids, asks []model.Level, depth int, format Formatter) uint32 {
	return crc32.ChecksumIEEE([]byte(Interleave(bids, asks, depth, format)))
}

// OKX 计算 OKX V5 深度校验值
func OKX(bids, asks []model.Level) int64 {
	return FoldSigned32(CRC32(bids, asks, OKXDepth, RawFormat))
}

// FTX 计算 FTX 深度校验值
func FTX(bids, asks []model.Level) int64 {
	return FoldNone(CRC32(bids, asks, FTXDepth, FloatFormat))
}

// PyFloat 把十进制字符串格式化为 Python repr(float(s)) 的结果
// 解析失败时原样返回
func PyFloat(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	// 指数取最短表示的十进制指数，-4 <= exp < 16 时使用定点格式
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(out, '.') {
		out += ".0"
	}
	return out
}
