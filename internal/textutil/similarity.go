package textutil

// Ratio returns a similarity score in [0, 1] between a and b computed over
// runes: twice the number of matched runes divided by the total rune count.
// Matches are found by repeatedly taking the longest common block and
// recursing on the unmatched text to either side of it. Two empty strings
// are identical.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchedRunes(ra, rb)) / float64(total)
}

func matchedRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, k := longestCommonBlock(a, b)
	if k == 0 {
		return 0
	}
	return k + matchedRunes(a[:i], b[:j]) + matchedRunes(a[i+k:], b[j+k:])
}

// longestCommonBlock returns the start offsets and length of the longest
// run shared by a and b. Ties resolve to the earliest block in a.
func longestCommonBlock(a, b []rune) (int, int, int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	bestI, bestJ, bestK := 0, 0, 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestK {
					bestI, bestJ, bestK = i-cur[j], j-cur[j], cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestK
}
