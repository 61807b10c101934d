// Package checksum 校验和测试
package checksum

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"market-stream-reconciler/internal/core/model"
)

func levels(pairs ...string) []model.Level {
	out := make([]model.Level, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Level{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestInterleave(t *testing.T) {
	tests := []struct {
		name string
		bids []model.Level
		asks []model.Level
		want string
	}{
		{
			name: "两侧等长",
			bids: levels("100", "1", "99", "2"),
			asks: levels("101", "1", "102", "3"),
			want: "100:1:101:1:99:2:102:3",
		},
		{
			name: "卖盘较长时剩余档位追加在末尾",
			bids: levels("100", "1"),
			asks: levels("101", "5", "102", "3"),
			want: "100:1:101:5:102:3",
		},
		{
			name: "买盘较长",
			bids: levels("3366.1", "7", "3366", "6", "3365", "1"),
			asks: levels("3366.8", "9"),
			want: "3366.1:7:3366.8:9:3366:6:3365:1",
		},
		{
			name: "空订单簿",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interleave(tt.bids, tt.asks, OKXDepth, RawFormat))
		})
	}
}

func TestOKX_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		bids []model.Level
		asks []model.Level
		want int64
	}{
		{"示例深度", levels("3366.1", "7", "3366", "6"), levels("3366.8", "9", "3368", "8", "3372", "8"), 1362239393},
		{"快照", levels("100", "1", "99", "2"), levels("101", "1", "102", "3"), -214146010},
		{"增量后", levels("100", "1"), levels("101", "5", "102", "3"), 889374035},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OKX(tt.bids, tt.asks))
		})
	}
}

func TestOKX_OnlyTopLevelsCount(t *testing.T) {
	var bids, asks []model.Level
	for i := 0; i < 40; i++ {
		bids = append(bids, model.Level{Price: strconv.Itoa(1000 - i), Size: "1"})
		asks = append(asks, model.Level{Price: strconv.Itoa(1001 + i), Size: "1"})
	}
	base := OKX(bids, asks)
	bids[30].Size = "9"
	asks[39].Size = "9"
	assert.Equal(t, base, OKX(bids, asks), "第 25 档之后的变化不影响校验值")
	bids[24].Size = "9"
	assert.NotEqual(t, base, OKX(bids, asks), "第 25 档的变化应影响校验值")
}

func TestFTX_FloatFormat(t *testing.T) {
	bids := levels("100", "1", "99.5", "2")
	asks := levels("101", "0.00001")
	assert.Equal(t, "100.0:1.0:101.0:1e-05:99.5:2.0", Interleave(bids, asks, FTXDepth, FloatFormat))
	assert.Equal(t, int64(1804834676), FTX(bids, asks))
}

func TestPyFloat(t *testing.T) {
	cases := map[string]string{
		"100":              "100.0",
		"99.50":            "99.5",
		"0.0001":           "0.0001",
		"0.00001":          "1e-05",
		"1e16":             "1e+16",
		"1234567890123456": "1234567890123456.0",
		"0":                "0.0",
		"abc":              "abc",
	}
	for in, want := range cases {
		assert.Equal(t, want, PyFloat(in), "PyFloat(%q)", in)
	}
}

func TestFoldSigned32(t *testing.T) {
	tests := []struct {
		in   uint32
		want int64
	}{
		{0, 0},
		{1<<31 - 1, 1<<31 - 1},
		{1 << 31, -(1 << 31)},
		{1<<32 - 1, -1},
	}
	for _, tt := range tests {
		// 与 v - 2*(2^31-1) - 2 的写法一致
		legacy := int64(tt.in)
		if legacy > 1<<31-1 {
			legacy = legacy - (1<<31-1)*2 - 2
		}
		assert.Equal(t, tt.want, FoldSigned32(tt.in))
		assert.Equal(t, legacy, FoldSigned32(tt.in))
	}
}

// TestChecksum_Deterministic 同一状态多次计算结果一致，且单档改动可被检出
func TestChecksum_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	genLevels := gen.SliceOfN(10, gen.IntRange(1, 1000)).Map(func(sizes []int) []model.Level {
		out := make([]model.Level, len(sizes))
		for i, s := range sizes {
			out[i] = model.Level{Price: strconv.Itoa(5000 - i), Size: strconv.Itoa(s)}
		}
		return out
	})

	properties.Property("重复计算结果一致", prop.ForAll(
		func(bids, asks []model.Level) bool {
			v := NewOKXVerifier()
			d := model.Digest{Value: v.Compute(bids, asks), Present: true}
			return v.Compute(bids, asks) == d.Value && v.Verify(bids, asks, d)
		},
		genLevels, genLevels,
	))

	properties.Property("篡改任一档数量后校验失败", prop.ForAll(
		func(bids, asks []model.Level, idx int) bool {
			v := NewOKXVerifier()
			d := model.Digest{Value: v.Compute(bids, asks), Present: true}
			corrupted := append([]model.Level(nil), bids...)
			corrupted[idx].Size = corrupted[idx].Size + "1"
			return !v.Verify(corrupted, asks, d)
		},
		genLevels, genLevels, gen.IntRange(0, 9),
	))

	properties.TestingRun(t)
}

func TestCrossedBookVerifier(t *testing.T) {
	v := CrossedBookVerifier{}
	assert.True(t, v.Verify(levels("100", "1"), levels("101", "1"), model.Digest{}))
	assert.False(t, v.Verify(levels("101", "1"), levels("101", "1"), model.Digest{}))
	assert.False(t, v.Verify(levels("102.5", "1"), levels("101", "1"), model.Digest{}))
	assert.True(t, v.Verify(nil, levels("101", "1"), model.Digest{}))
}

func TestCRC32Verifier_MissingDigest(t *testing.T) {
	v := NewOKXVerifier()
	assert.True(t, v.Verify(levels("100", "1"), levels("101", "1"), model.Digest{}))
	assert.False(t, v.Verify(levels("100", "1"), levels("101", "1"), model.Digest{Value: 1, Present: true}))
}
