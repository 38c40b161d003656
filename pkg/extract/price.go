package extract

import (
	"math"
	"strconv"
	"strings"
)

// SanitizePrice keeps only digits, commas and periods and turns commas into
// periods. It returns "" when nothing is left.
//
// Thousands separators are not recognized: "1.250,00 ₺" becomes "1.250.00",
// which Discount then treats as unparseable.
func SanitizePrice(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ',':
			return '.'
		case r == '.', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, raw)
}

// Discount returns the percentage reduction from original to reduced,
// rounded to two decimals. Both values must parse as positive numbers.
func Discount(original, reduced string) (float64, bool) {
	o, ok := positive(original)
	if !ok {
		return 0, false
	}
	r, ok := positive(reduced)
	if !ok {
		return 0, false
	}
	return math.Round((o-r)/o*100*100) / 100, true
}

func positive(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
