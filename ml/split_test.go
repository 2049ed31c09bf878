package ml

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplitKeepsClassShares(t *testing.T) {
	labels := []int{1, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0} // 7 vs 5

	train, test, err := StratifiedSplit(labels, 0.3, 0)
	require.NoError(t, err)
	assert.Len(t, test, 4)
	assert.Len(t, train, 8)

	counts := map[int]int{}
	for _, idx := range test {
		counts[labels[idx]]++
	}
	assert.Equal(t, 2, counts[0])
	assert.Equal(t, 2, counts[1])

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, idx := range all {
		assert.Equal(t, i, idx)
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	labels := make([]int, 40)
	for i := range labels {
		labels[i] = i % 3
	}
	train1, test1, err := StratifiedSplit(labels, 0.25, 7)
	require.NoError(t, err)
	train2, test2, err := StratifiedSplit(labels, 0.25, 7)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
}

func TestStratifiedSplitErrors(t *testing.T) {
	_, _, err := StratifiedSplit([]int{0, 0, 0, 1}, 0.5, 1)
	assert.Error(t, err, "singleton class")

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1, 2, 2, 0, 1, 2, 0}, 0.1, 1)
	assert.Error(t, err, "test set smaller than class count")

	_, _, err = StratifiedSplit([]int{0, 1, 0, 1}, 0.9, 1)
	assert.Error(t, err, "train set smaller than class count")

	_, _, err = StratifiedSplit([]int{0, 1}, 0, 1)
	assert.Error(t, err)

	_, _, err = StratifiedSplit(nil, 0.2, 1)
	assert.Error(t, err)
}
