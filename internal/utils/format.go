
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupiah renders an amount as "Rp 1.234.567" (rounded to integer,
// dot as thousands separator).
func FormatRupiah(v float64) string {
	return "Rp " + groupInt(int64(math.Round(v)), '.')
}

// FormatInt renders an integer with dot thousands grouping, no prefix.
func FormatInt(n int64) string {
	return groupInt(n, '.')
}

// FormatNumUS renders a float with the given decimals and comma thousands
// grouping ("2,345.67"). Used for world-market figures.
func FormatNumUS(f float64, decimals int) string {
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	pow := math.Pow10(decimals)
	f = math.Round(f*pow) / pow
	s := fmt.Sprintf("%.*f", decimals, f)
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i+1:]
	}
	out := sign + groupDigits(intPart, ',')
	if decimals > 0 {
		out += "." + frac
	}
	return out
}

// FormatPct renders a percentage with 2 decimals and an explicit sign for
// non-negative values. A nil percentage (no previous sample) renders as "-".
func FormatPct(p *float64) string {
	if p == nil {
		return "-"
	}
	sign := ""
	if *p >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, *p)
}

// FormatGrams renders a weight with up to 1 decimal, trimming trailing
// zeros and the dot ("2.0" -> "2", "2.5" -> "2.5").
func FormatGrams(d decimal.Decimal) string {
	s := d.StringFixed(1)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func groupInt(n int64, sep byte) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return sign + groupDigits(fmt.Sprintf("%d", n), sep)
}

func groupDigits(s string, sep byte) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(s)/3)
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte(sep)
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
