package arggraph

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CheckCharData verifies that s can be written verbatim inside a CDATA
// section: it must be valid UTF-8, contain only XML 1.0 characters and must
// not contain the "]]>" terminator.
func CheckCharData(s string) error {
	if strings.Contains(s, "]]>") {
		return fmt.Errorf("%w: contains \"]]>\"", ErrMalformedText)
	}
	return checkChars(s)
}

func checkChars(s string) error {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return fmt.Errorf("%w: invalid UTF-8 at byte %d", ErrMalformedText, i)
		}
		if !isXMLChar(r) {
			return fmt.Errorf("%w: character %U at byte %d", ErrMalformedText, r, i)
		}
		i += size
	}
	return nil
}

// isXMLChar matches the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
