// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package history_test

import (
	"testing"

	"github.com/cartertinney/envmonitor/history"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsLastC(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 7, 100} {
		for n := 0; n <= 3*capacity+1; n++ {
			b := history.New[int](capacity)
			for i := range n {
				b.Append(i)
				require.LessOrEqual(t, b.Len(), capacity)
			}

			got := b.Snapshot()
			require.Len(t, got, min(n, capacity))
			for i, v := range got {
				require.Equal(t, n-len(got)+i, v)
			}
		}
	}
}

func TestAppendReportsEviction(t *testing.T) {
	b := history.New[string](2)
	require.False(t, b.Append("a"))
	require.False(t, b.Append("b"))
	require.True(t, b.Append("c"))
	require.Equal(t, []string{"b", "c"}, b.Snapshot())
}

func TestSnapshotIsIndependent(t *testing.T) {
	b := history.New[int](3)
	b.Append(1)
	b.Append(2)

	snap := b.Snapshot()
	b.Append(3)
	b.Append(4)
	snap[0] = 99

	require.Equal(t, []int{99, 2}, snap)
	require.Equal(t, []int{2, 3, 4}, b.Snapshot())
}

func TestClear(t *testing.T) {
	b := history.New[int](3)
	b.Clear()
	require.Empty(t, b.Snapshot())

	for i := range 5 {
		b.Append(i)
	}
	b.Clear()
	b.Clear()
	require.Zero(t, b.Len())
	require.Empty(t, b.Snapshot())

	b.Append(7)
	require.Equal(t, []int{7}, b.Snapshot())
}

func TestDefaultCapacity(t *testing.T) {
	require.Equal(t, history.DefaultCapacity, history.New[int](0).Cap())
	require.Equal(t, history.DefaultCapacity, history.New[int](-3).Cap())
	require.Equal(t, 5, history.New[int](5).Cap())
}
