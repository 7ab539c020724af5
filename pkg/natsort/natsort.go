package natsort

import (
	"slices"
	"strings"
)

// Compare orders two strings the way a human reads identifiers: the strings
// are split into alternating runs of non-digits and ASCII digits, digit runs
// compare by numeric value and everything else compares bytewise. Strings that
// compare equal run by run (e.g. "n01" and "n1") fall back to plain string
// comparison so the order stays total.
func Compare(a, b string) int {
	ra, rb := runs(a), runs(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		var c int
		// runs always start with a (possibly empty) non-digit run, so odd
		// positions hold digits
		if i%2 == 1 {
			c = compareNumeric(ra[i], rb[i])
		} else {
			c = strings.Compare(ra[i], rb[i])
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case len(ra) < len(rb):
		return -1
	case len(ra) > len(rb):
		return 1
	}
	return strings.Compare(a, b)
}

// Sort sorts s in place in natural order.
func Sort(s []string) {
	slices.SortFunc(s, Compare)
}

// Keys returns the keys of m in natural order.
func Keys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	Sort(keys)
	return keys
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// runs splits s into [text, digits, text, digits, ..., text]. The result always
// has an odd length; the first and last entries may be empty.
func runs(s string) []string {
	out := make([]string, 0, 3)
	start := 0
	digits := false
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) == digits {
			continue
		}
		out = append(out, s[start:i])
		start = i
		digits = !digits
	}
	out = append(out, s[start:])
	if digits {
		out = append(out, "")
	}
	return out
}

// compareNumeric compares two non-empty digit runs by value without parsing,
// so runs longer than an int64 still order correctly.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}
