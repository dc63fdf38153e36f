package sql

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
//
// SQL Like operator. Internally, the LIKE operator is translated into a regex
//
// The sql like's wildcard is relatively simple, basically supports 2 placeholder
//
// 1. %, represents zero, one or more sequnces of any characters
// 2. _, represents exactly one character
// 3. an optional ESCAPE character makes the following character literal
//
// Matching is case insensitive, like the default behavior of sqlite for
// ASCII characters.
//
// ----------------------------------------------------------------------------

const NoEscape = utf8.RuneError

func LikeToRegex(
	input string,
	escape rune,
) string {
	buf := strings.Builder{}
	buf.WriteString("(?is)^")

	escaped := false
	for _, c := range input {
		if escaped {
			buf.WriteString(regexp.QuoteMeta(string(c)))
			escaped = false
			continue
		}

		switch {
		case escape != NoEscape && c == escape:
			escaped = true
		case c == '%':
			buf.WriteString(".*")
		case c == '_':
			buf.WriteString(".")
		default:
			buf.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	buf.WriteString("$")
	return buf.String()
}

// Like reports whether text matches the LIKE pattern
func Like(pattern, text string, escape rune) (bool, error) {
	re, err := regexp.Compile(LikeToRegex(pattern, escape))
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}
