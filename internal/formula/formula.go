// Package formula implements the two deterministic digit transforms used to
// derive candidate numbers from market results. Both are pure.
package formula

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	candidateTarget = 3
	separator       = ", "
)

var (
	// ErrNoData means the market result is empty or not a digit string.
	ErrNoData = errors.New("formula: no data")
	// ErrWaiting means one of the Formula 2 operands has not been entered yet.
	ErrWaiting = errors.New("formula: waiting for input")
	// ErrMalformed means a Formula 2 operand is not a decimal number.
	ErrMalformed = errors.New("formula: malformed input")
)

// Display strings shown in place of a result.
const (
	DisplayNoData  = "no data"
	DisplayWaiting = "waiting"
	DisplayError   = "error"
)

// Display renders a formula outcome for end users.
func Display(result string, err error) string {
	switch {
	case err == nil:
		return result
	case errors.Is(err, ErrNoData):
		return DisplayNoData
	case errors.Is(err, ErrWaiting):
		return DisplayWaiting
	default:
		return DisplayError
	}
}

// Formula1 computes the "complete to 5 / complete to 10" candidates of a
// market result such as "41". Candidates are the to-5 values of every digit
// followed by the to-10 values; when fewer than three distinct values come
// out, the pre-increment sums are used as backfill.
func Formula1(result string) (string, error) {
	digits, ok := parseDigits(strings.TrimSpace(result))
	if !ok {
		return "", ErrNoData
	}

	set := newOrderedSet()
	for _, d := range digits {
		set.add((5 - d%5 + 1) % 10)
	}
	for _, d := range digits {
		set.add(((10-d%10)%10 + 1) % 10)
	}

	for _, d := range digits {
		if set.len() >= candidateTarget {
			break
		}
		set.add(5 - d%5)
		if set.len() >= candidateTarget {
			break
		}
		set.add((10 - d%10) % 10)
	}

	return set.String(), nil
}

// Formula2 computes candidates from the last three integer digits of the
// "set" and "value" figures, e.g. "1,313.06" and "15,716.28".
func Formula2(set, value string) (string, error) {
	setWin, err := lastIntegerDigits(set)
	if err != nil {
		return "", err
	}
	valueWin, err := lastIntegerDigits(value)
	if err != nil {
		return "", err
	}

	pairs := len(setWin)
	if len(valueWin) < pairs {
		pairs = len(valueWin)
	}

	sums := make([]int, 0, pairs)
	out := newOrderedSet()
	for i := 0; i < pairs; i++ {
		sum := (setWin[i] + valueWin[i]) % 10
		sums = append(sums, sum)
		out.add((sum + 1) % 10)
	}
	for _, sum := range sums {
		if out.len() >= candidateTarget {
			break
		}
		out.add(sum)
	}

	return out.String(), nil
}

// ValidOperand reports whether raw can be used as a Formula 2 input.
// An empty string is valid and means "not entered yet".
func ValidOperand(raw string) bool {
	_, err := lastIntegerDigits(raw)
	return err == nil || errors.Is(err, ErrWaiting)
}

// lastIntegerDigits strips thousands separators, drops the fraction and
// returns up to the last three digits of the integer part.
func lastIntegerDigits(raw string) ([]int, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return nil, ErrWaiting
	}
	if _, err := decimal.NewFromString(clean); err != nil {
		return nil, ErrMalformed
	}

	intPart := clean
	if i := strings.IndexByte(clean, '.'); i >= 0 {
		intPart = clean[:i]
	}
	digits, ok := parseDigits(intPart)
	if !ok {
		// signs and exponents parse as decimals but carry no usable digits
		return nil, ErrMalformed
	}
	if len(digits) > candidateTarget {
		digits = digits[len(digits)-candidateTarget:]
	}
	return digits, nil
}

func parseDigits(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	out := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		out = append(out, int(c-'0'))
	}
	return out, true
}

type orderedSet struct {
	seen  map[int]struct{}
	items []int
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[int]struct{})}
}

func (s *orderedSet) add(v int) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) len() int { return len(s.items) }

func (s *orderedSet) String() string {
	parts := make([]string, len(s.items))
	for i, v := range s.items {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, separator)
}
