package draft

import "strings"

const wordsPerMinute = 200

// EstimateReadTime returns the reading time for a plain-text body at 200
// words per minute, rounded to the nearest whole minute, never less than 1.
func EstimateReadTime(plain string) int {
	words := len(strings.Fields(plain))
	minutes := (words + wordsPerMinute/2) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
