// Package compare holds the response similarity primitives shared by the scanners.
package compare

// RelativeDistance returns a similarity ratio in [0, 1] between a and b:
// 2*M / (len(a)+len(b)) where M is the number of bytes the two strings have in common
// regardless of position. Two empty strings are identical.
//
// The ratio is an upper bound of the longest-matching-blocks similarity and costs one
// pass over each string with no heap allocation.
func RelativeDistance(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}

	var avail [256]int32
	for i := 0; i < len(b); i++ {
		avail[b[i]]++
	}
	matches := 0
	for i := 0; i < len(a); i++ {
		c := a[i]
		if avail[c] > 0 {
			avail[c]--
			matches++
		}
	}
	return ratio(matches, total)
}

// FuzzyEqual reports whether RelativeDistance(a, b) >= threshold, skipping the
// comparison whenever the length ratio alone already rules it out.
//
// A threshold of 0 (or less) is always met. A threshold of 1 (or more) requires a == b.
func FuzzyEqual(a, b string, threshold float64) bool {
	if threshold <= 0 {
		return true
	}
	if threshold >= 1 {
		return a == b
	}

	if len(a) > len(b) {
		a, b = b, a
	}
	if upperBound(len(a), len(b)) < threshold {
		return false
	}
	return RelativeDistance(a, b) >= threshold
}

// upperBound is the best ratio two strings of these lengths can reach.
func upperBound(shorter, longer int) float64 {
	total := shorter + longer
	if total == 0 {
		return 1.0
	}
	return ratio(shorter, total)
}

func ratio(matches, total int) float64 {
	return 2.0 * float64(matches) / float64(total)
}
