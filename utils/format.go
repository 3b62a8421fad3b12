package utils

import (
	"github.com/dustin/go-humanize"
)

// FormatIntWithCommas renders n with thousands separators, e.g. 1234567 -> "1,234,567"
func FormatIntWithCommas(n int64) string {
	return humanize.Comma(n)
}

// FormatFileSize renders a byte count for CLI listings, e.g. 2048 -> "2.0 KiB"
func FormatFileSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}
