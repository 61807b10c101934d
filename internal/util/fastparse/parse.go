// Package fastparse 提供行情字段的数值解析与比较。
// 价格、数量在订单簿内以交易所原始字符串保存，排序时才转为数值。
package fastparse

import (
	"strconv"
)

// IsDigits 判断字符串是否只由 ASCII 数字组成（空串返回 false）
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Number 价格排序使用的数值
// 纯数字字符串按整数解析，其余按浮点解析
type Number struct {
	isInt bool
	i     int64
	f     float64
}

// ParseNumber 按"整数优先"的规则解析价格字符串
// 纯数字但超出 int64 范围时退化为浮点
func ParseNumber(s string) (Number, error) {
	if IsDigits(s) {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Number{isInt: true, i: v}, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, err
	}
	return Number{f: f}, nil
}

// Float 返回浮点表示
func (n Number) Float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// Cmp 比较两个数值，返回 -1 / 0 / 1
func (n Number) Cmp(o Number) int {
	if n.isInt && o.isInt {
		switch {
		case n.i < o.i:
			return -1
		case n.i > o.i:
			return 1
		}
		return 0
	}
	a, b := n.Float(), o.Float()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ComparePrice 比较两个价格字符串
// 无法解析的字符串排在最后，彼此之间按字典序
func ComparePrice(a, b string) int {
	na, errA := ParseNumber(a)
	nb, errB := ParseNumber(b)
	switch {
	case errA != nil && errB != nil:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return na.Cmp(nb)
}

// ParseInt 解析十进制整数字符串
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseInt 解析整数，失败时返回 0
// 用于时间戳等允许缺省的字段
func MustParseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
