package domain

import (
	"fmt"
	"strings"
)

// BlockMode selects how a block value expands into concrete numbers.
type BlockMode string

const (
	BlockModeExact BlockMode = "exact"
	BlockModeHead  BlockMode = "head"
	BlockModeTail  BlockMode = "tail"
)

// IsValidNumber reports whether s is exactly digits ASCII digits.
func IsValidNumber(s string, digits int) bool {
	if len(s) != digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ExpandBlock materialises mode/value into the concrete numbers to block.
// head/tail take a single digit and expand over the whole number space.
func ExpandBlock(mode BlockMode, value string, digits int) ([]string, error) {
	value = strings.TrimSpace(value)
	switch mode {
	case BlockModeExact:
		if !IsValidNumber(value, digits) {
			return nil, fmt.Errorf("exact block needs a %d-digit number, got %q", digits, value)
		}
		return []string{value}, nil
	case BlockModeHead, BlockModeTail:
		if !IsValidNumber(value, 1) {
			return nil, fmt.Errorf("%s block needs a single digit, got %q", mode, value)
		}
		if digits == 1 {
			return []string{value}, nil
		}
		rest := digits - 1
		count := pow10(rest)
		out := make([]string, 0, count)
		for i := 0; i < count; i++ {
			suffix := fmt.Sprintf("%0*d", rest, i)
			if mode == BlockModeHead {
				out = append(out, value+suffix)
			} else {
				out = append(out, suffix+value)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown block mode %q", mode)
	}
}

func pow10(n int) int {
	r := 1
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}
