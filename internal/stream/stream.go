// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package stream computes which items of a repeatedly refetched ordered
// sequence are new since the previous fetch.
package stream

import "slices"

// Diff returns the elements of cur that appeared after the last element of
// prev that is still present in cur (the anchor). The result preserves the
// order of cur.
//
// When prev is empty (first poll) the result is empty: nothing is "new" yet,
// only the snapshot gets recorded. When prev is non-empty but none of its
// elements appear in cur, continuity is lost and Diff also returns nil.
// Silence is deliberate here: a duplicate reply is worse than a missed post,
// so the differ never guesses after a discontinuity.
func Diff(prev, cur []int64) []int64 {
	if len(prev) == 0 {
		return nil
	}

	// Walk prev from the end looking for the anchor, the most recent
	// element still present in cur.
	for i := len(prev) - 1; i >= 0; i-- {
		if j := slices.Index(cur, prev[i]); j >= 0 {
			if j+1 >= len(cur) {
				return nil
			}
			return cur[j+1:]
		}
	}

	return nil
}
