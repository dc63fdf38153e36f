package vdbe

import (
	"strings"
)

// Collation is a named comparison function for text values.
type Collation int

const (
	CollBinary Collation = iota
	CollNoCase
	CollRTrim
)

var collationNames = []string{
	CollBinary: "BINARY",
	CollNoCase: "NOCASE",
	CollRTrim:  "RTRIM",
}

func (self Collation) Name() string {
	if int(self) < len(collationNames) {
		return collationNames[self]
	}
	return "BINARY"
}

// CollationByName looks a collation up case-insensitively. An empty name is
// the default BINARY collation.
func CollationByName(name string) (Collation, bool) {
	if name == "" {
		return CollBinary, true
	}
	for i, n := range collationNames {
		if strings.EqualFold(n, name) {
			return Collation(i), true
		}
	}
	return CollBinary, false
}

func (self Collation) Compare(a, b string) int {
	switch self {
	case CollNoCase:
		return compareNoCase(a, b)
	case CollRTrim:
		return strings.Compare(strings.TrimRight(a, " "), strings.TrimRight(b, " "))
	default:
		return strings.Compare(a, b)
	}
}

// only ASCII letters are folded, matching the classic NOCASE behaviour
func compareNoCase(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ca, cb := foldASCII(a[i]), foldASCII(b[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func foldASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
