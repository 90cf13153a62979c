package repository

import "sort"

// DirectKey identifies the direct thread between two users regardless of
// who started it.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}
