package diff3

import "bytes"

// Similarity scores how alike two contents are on a 0..100 scale. The score
// is twice the number of lines the two sides share (as a multiset) divided
// by the total line count. Two empty inputs are identical.
func Similarity(a, b []byte) int {
	if bytes.Equal(a, b) {
		return 100
	}
	aLines := splitLines(string(a))
	bLines := splitLines(string(b))
	total := len(aLines) + len(bLines)
	if total == 0 {
		return 100
	}

	counts := make(map[string]int, len(aLines))
	for _, l := range aLines {
		counts[l]++
	}
	common := 0
	for _, l := range bLines {
		if counts[l] > 0 {
			counts[l]--
			common++
		}
	}
	return 2 * common * 100 / total
}
