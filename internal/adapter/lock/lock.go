// Package lock serialises writers to the same content types.
package lock

import "slices"

// normalize sorts and de-duplicates keys so every caller acquires in the
// same order.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
