package segment

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence. Matched case-insensitively against the
// word that carries the period.
var abbreviations = map[string]struct{}{
	"z.b.": {}, "bzw.": {}, "usw.": {}, "d.h.": {}, "vgl.": {}, "u.a.": {},
	"ca.": {}, "nr.": {}, "dr.": {}, "prof.": {}, "str.": {}, "evtl.": {},
	"ggf.": {}, "inkl.": {}, "etc.": {}, "e.g.": {}, "i.e.": {}, "mr.": {},
	"mrs.": {}, "ms.": {}, "vs.": {}, "st.": {}, "jh.": {}, "s.": {},
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '»', '«', '“', '”', '‘', '’':
		return true
	}
	return false
}

// SplitText splits text into sentences. Blank lines always end a sentence;
// single line breaks inside a paragraph do not.
func SplitText(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		for _, sentence := range splitLine(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)

			if endsSentence(sentence) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// SegmentParagraphs splits text into paragraphs on blank lines, splits each
// paragraph into sentences and returns one sentence per line.
func SegmentParagraphs(text string) string {
	var lines []string
	for _, par := range strings.Split(text, "\n\n") {
		par = strings.ReplaceAll(par, "\n", " ")
		lines = append(lines, SplitText(par)...)
	}
	return strings.Join(lines, "\n")
}

func endsSentence(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool { return isCloser(r) || unicode.IsSpace(r) })
	if s == "" {
		return false
	}
	r := []rune(s)
	return isTerminator(r[len(r)-1])
}

func splitLine(line string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if !isTerminator(runes[i]) {
			continue
		}

		if runes[i] == '.' && !isBoundary(runes, i) {
			continue
		}

		j := i + 1
		for j < len(runes) && isTerminator(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && isCloser(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// isBoundary reports whether the period at runes[i] ends a sentence.
func isBoundary(runes []rune, i int) bool {
	next := i + 1
	// 3.5, www.example.org, z.B.
	if next < len(runes) && !unicode.IsSpace(runes[next]) && !isCloser(runes[next]) && !isTerminator(runes[next]) {
		return false
	}

	start := i
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	word := string(runes[start : i+1])

	// numbered listings and dates: "1. Punkt", "am 3. Mai"
	if isDigits(word[:len(word)-1]) {
		return false
	}
	if _, ok := abbreviations[strings.ToLower(strings.TrimLeftFunc(word, isCloser))]; ok {
		return false
	}
	// single initials: "J. Smith"
	if w := []rune(word); len(w) == 2 && unicode.IsUpper(w[0]) {
		return false
	}

	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
