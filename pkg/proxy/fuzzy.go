package proxy

import "strings"

const fuzzyThreshold = 0.7

// FuzzyMatch reports whether two words are close enough to be a plausible
// typo of each other. This is a coarse bag-of-characters overlap, not edit
// distance: it counts how many characters of word1 appear anywhere in word2
// and divides by the longer length. Anagram-like inputs can score as matches;
// that is a known limitation of the heuristic, kept deliberately.
func FuzzyMatch(word1, word2 string) bool {
	if word1 == "" || word2 == "" {
		return false
	}

	w1 := []rune(strings.ToLower(word1))
	w2 := strings.ToLower(word2)

	if string(w1) == w2 {
		return true
	}

	diff := len(w1) - len([]rune(w2))
	if diff < -2 || diff > 2 {
		return false
	}

	matches := 0
	for _, c := range w1 {
		if strings.ContainsRune(w2, c) {
			matches++
		}
	}
	longer := len(w1)
	if n := len([]rune(w2)); n > longer {
		longer = n
	}
	return float64(matches)/float64(longer) >= fuzzyThreshold
}
