package analyzer

import "strings"

// PorterStemmer reduces English words to their Porter stem. Words that are
// not plain lowercase ASCII are returned unchanged.
type PorterStemmer struct{}

func NewPorterStemmer() *PorterStemmer {
	return &PorterStemmer{}
}

// suffixRule replaces suffix with repl when the remaining stem has a
// measure greater than minMeasure.
type suffixRule struct {
	suffix     string
	repl       string
	minMeasure int
}

// Rules within a step are ordered so that the longest matching suffix is
// found first. Only that rule is considered, whether or not it applies.
var (
	step2Rules = []suffixRule{
		{"ational", "ate", 0}, {"iveness", "ive", 0}, {"fulness", "ful", 0},
		{"ousness", "ous", 0}, {"ization", "ize", 0}, {"biliti", "ble", 0},
		{"tional", "tion", 0}, {"ation", "ate", 0}, {"alism", "al", 0},
		{"aliti", "al", 0}, {"iviti", "ive", 0}, {"entli", "ent", 0},
		{"ousli", "ous", 0}, {"ator", "ate", 0}, {"enci", "ence", 0},
		{"anci", "ance", 0}, {"izer", "ize", 0}, {"abli", "able", 0},
		{"alli", "al", 0}, {"logi", "log", 0}, {"bli", "ble", 0},
		{"eli", "e", 0},
	}
	step3Rules = []suffixRule{
		{"icate", "ic", 0}, {"ative", "", 0}, {"alize", "al", 0},
		{"iciti", "ic", 0}, {"ical", "ic", 0}, {"ness", "", 0},
		{"ful", "", 0},
	}
	step4Rules = []suffixRule{
		{"ement", "", 1}, {"ance", "", 1}, {"ence", "", 1}, {"able", "", 1},
		{"ible", "", 1}, {"ment", "", 1}, {"ant", "", 1}, {"ent", "", 1},
		{"ion", "", 1}, {"ism", "", 1}, {"ate", "", 1}, {"iti", "", 1},
		{"ous", "", 1}, {"ive", "", 1}, {"ize", "", 1}, {"al", "", 1},
		{"er", "", 1}, {"ic", "", 1}, {"ou", "", 1},
	}
)

func (p *PorterStemmer) Stem(word string) string {
	if len(word) < 3 || !isLowerASCII(word) {
		return word
	}
	w := []byte(word)
	w = stepPlural(w)
	w = stepPast(w)
	if w[len(w)-1] == 'y' && hasVowel(w[:len(w)-1]) {
		w[len(w)-1] = 'i'
	}
	w = applyRules(w, step2Rules)
	w = applyRules(w, step3Rules)
	w = applyStep4(w)
	w = stepFinalE(w)
	return string(w)
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func consonantAt(w []byte, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !consonantAt(w, i-1)
	}
	return true
}

// measure counts vowel-consonant sequences in w.
func measure(w []byte) int {
	m := 0
	prevVowel := false
	for i := range w {
		c := consonantAt(w, i)
		if c && prevVowel {
			m++
		}
		prevVowel = !c
	}
	return m
}

func hasVowel(w []byte) bool {
	for i := range w {
		if !consonantAt(w, i) {
			return true
		}
	}
	return false
}

func doubleConsonant(w []byte) bool {
	n := len(w)
	return n >= 2 && w[n-1] == w[n-2] && consonantAt(w, n-1)
}

// cvc reports a consonant-vowel-consonant ending whose last letter is not
// w, x or y.
func cvc(w []byte) bool {
	n := len(w)
	if n < 3 || !consonantAt(w, n-3) || consonantAt(w, n-2) || !consonantAt(w, n-1) {
		return false
	}
	return !strings.ContainsRune("wxy", rune(w[n-1]))
}

func hasSuffix(w []byte, s string) bool {
	return len(w) >= len(s) && string(w[len(w)-len(s):]) == s
}

func stepPlural(w []byte) []byte {
	switch {
	case hasSuffix(w, "sses"), hasSuffix(w, "ies"):
		return w[:len(w)-2]
	case hasSuffix(w, "ss"):
		return w
	case hasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func stepPast(w []byte) []byte {
	if hasSuffix(w, "eed") {
		if measure(w[:len(w)-3]) > 0 {
			return w[:len(w)-1]
		}
		return w
	}

	var stem []byte
	switch {
	case hasSuffix(w, "ed"):
		stem = w[:len(w)-2]
	case hasSuffix(w, "ing"):
		stem = w[:len(w)-3]
	default:
		return w
	}
	if !hasVowel(stem) {
		return w
	}

	switch {
	case hasSuffix(stem, "at"), hasSuffix(stem, "bl"), hasSuffix(stem, "iz"):
		return append(stem, 'e')
	case doubleConsonant(stem) && !strings.ContainsRune("lsz", rune(stem[len(stem)-1])):
		return stem[:len(stem)-1]
	case measure(stem) == 1 && cvc(stem):
		return append(stem, 'e')
	}
	return stem
}

func applyRules(w []byte, rules []suffixRule) []byte {
	for _, r := range rules {
		if !hasSuffix(w, r.suffix) {
			continue
		}
		stem := w[:len(w)-len(r.suffix)]
		if measure(stem) > r.minMeasure {
			return append(stem, r.repl...)
		}
		return w
	}
	return w
}

func applyStep4(w []byte) []byte {
	for _, r := range step4Rules {
		if !hasSuffix(w, r.suffix) {
			continue
		}
		stem := w[:len(w)-len(r.suffix)]
		if measure(stem) <= r.minMeasure {
			return w
		}
		if r.suffix == "ion" {
			if n := len(stem); n == 0 || (stem[n-1] != 's' && stem[n-1] != 't') {
				return w
			}
		}
		return stem
	}
	return w
}

func stepFinalE(w []byte) []byte {
	if hasSuffix(w, "e") {
		stem := w[:len(w)-1]
		if m := measure(stem); m > 1 || (m == 1 && !cvc(stem)) {
			w = stem
		}
	}
	if measure(w) > 1 && doubleConsonant(w) && w[len(w)-1] == 'l' {
		w = w[:len(w)-1]
	}
	return w
}
