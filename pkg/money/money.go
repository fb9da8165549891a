package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// amount 使用 int64，並定義精度：小數點後 4 位
const (
	Scale = 4
	// Unit 1 元對應的最小單位數
	Unit = 10000
)

// ErrTooPrecise 超過支援的小數位數
var ErrTooPrecise = errors.New("amount has more than 4 decimal places")

// Parse 把十進位字串 (如 "12.34") 轉成定點 int64
// 只負責精度轉換，正負號的業務驗證交給上層
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(Scale)
	if !scaled.IsInteger() {
		return 0, ErrTooPrecise
	}
	return scaled.IntPart(), nil
}

// Format 把定點 int64 轉回十進位字串
func Format(v int64) string {
	return decimal.New(v, -Scale).String()
}
