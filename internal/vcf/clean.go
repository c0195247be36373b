package vcf

import (
	"math"
	"strconv"
	"strings"
)

// cleaner rewrites characters that break bcftools and variant viewers.
var cleaner = strings.NewReplacer(
	";", ",",
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// CleanString replaces semicolons with commas and typographic quotes with
// straight ones. It is idempotent.
func CleanString(s string) string {
	return cleaner.Replace(s)
}

// InfoKey is the INFO ID used for a source column, both in the header and
// in data lines.
func InfoKey(column string) string {
	return CleanString(column)
}

// CleanSampleValue drops the decimal part of a float whose magnitude is at
// least 1 ("150.45" becomes "150"). Some viewers reject such values in
// sample columns regardless of the declared type.
func CleanSampleValue(v string) string {
	if !strings.Contains(v, ".") || v == "." {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	if math.Abs(f) >= 1 && !math.IsInf(f, 0) {
		return strconv.FormatFloat(math.Trunc(f), 'f', -1, 64)
	}
	return v
}
