// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package stream

import (
	"testing"

	"go.astrophena.name/pumpkin/internal/testutil"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		prev, cur, want []int64
	}{
		"first poll yields nothing": {
			prev: nil,
			cur:  []int64{1, 2, 3},
			want: nil,
		},
		"no change": {
			prev: []int64{1, 2, 3},
			cur:  []int64{1, 2, 3},
			want: nil,
		},
		"appended suffix": {
			prev: []int64{1, 2, 3},
			cur:  []int64{1, 2, 3, 4, 5},
			want: []int64{4, 5},
		},
		"head rotated out": {
			prev: []int64{1, 2, 3},
			cur:  []int64{2, 3, 4},
			want: []int64{4},
		},
		"anchor is a middle element after deletion": {
			prev: []int64{1, 2, 3},
			cur:  []int64{1, 2, 4, 5},
			want: []int64{4, 5},
		},
		"total discontinuity yields nothing": {
			prev: []int64{1, 2, 3},
			cur:  []int64{4, 5, 6},
			want: nil,
		},
		"current empty": {
			prev: []int64{1, 2, 3},
			cur:  nil,
			want: nil,
		},
		"unsorted identifiers": {
			prev: []int64{10, 7, 42},
			cur:  []int64{10, 7, 42, 5},
			want: []int64{5},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, Diff(tc.prev, tc.cur), tc.want)
		})
	}
}

func TestDiffAppendOnly(t *testing.T) {
	t.Parallel()

	// For any append-only growth the diff is exactly the appended suffix.
	prev := []int64{3, 1, 4, 1, 5}
	for _, appended := range [][]int64{
		{},
		{9},
		{9, 2, 6},
	} {
		cur := append(append([]int64{}, prev...), appended...)
		got := Diff(prev, cur)
		var want []int64
		if len(appended) > 0 {
			want = appended
		}
		testutil.AssertEqual(t, got, want)
	}
}
