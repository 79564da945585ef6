// Package money 在最小货币单位（分）与展示金额之间转换。
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale 最小货币单位的小数位数
const Scale = 2

var (
	ErrFractionalMinorUnit = errors.New("金额精度超出最小货币单位")
	ErrAmountOutOfRange    = errors.New("金额超出可表示范围")
	ErrInvalidFormat       = errors.New("金额格式错误")
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Format 把分转换为两位小数的字符串，如 150050 -> "1500.50"
func Format(minor int64) string {
	return decimal.New(minor, -Scale).StringFixed(Scale)
}

// Parse 把展示金额解析为分。只接受普通十进制写法，
// 多于两位小数或超出 int64 范围时报错
func Parse(s string) (int64, error) {
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidFormat
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	minor := d.Shift(Scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrFractionalMinorUnit
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrAmountOutOfRange
	}
	return minor.IntPart(), nil
}
