package ml

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// StratifiedSplit shuffles row indices into train and test sets so that each
// class keeps its share of the rows in both. The same seed yields the same
// split. Every class needs at least two rows and the test set must be able to
// hold one row per class.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int, err error) {
	n := len(labels)
	if n == 0 {
		return nil, nil, errors.New("labels empty")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.Errorf("test ratio %v must be in (0, 1)", testRatio)
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for class, rows := range byClass {
		if len(rows) < 2 {
			return nil, nil, errors.Errorf("class %d has only %d row, need at least 2", class, len(rows))
		}
		classes = append(classes, class)
	}
	sort.Ints(classes)

	nTest := int(math.Ceil(testRatio * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) {
		return nil, nil, errors.Errorf("test size %d is smaller than the number of classes %d", nTest, len(classes))
	}
	if nTrain < len(classes) {
		return nil, nil, errors.Errorf("train size %d is smaller than the number of classes %d", nTrain, len(classes))
	}

	testCounts := allocate(classes, byClass, nTest, n)

	rnd := rand.New(rand.NewSource(seed))
	for _, class := range classes {
		rows := byClass[class]
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		k := testCounts[class]
		test = append(test, rows[:k]...)
		train = append(train, rows[k:]...)
	}
	rnd.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rnd.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// allocate distributes total rows over classes proportionally to class size,
// handing out the remainder by largest fractional share, keeping at least one
// row per class on each side.
func allocate(classes []int, byClass map[int][]int, total, n int) map[int]int {
	counts := make(map[int]int, len(classes))
	type share struct {
		class int
		frac  float64
	}
	shares := make([]share, 0, len(classes))
	assigned := 0
	for _, class := range classes {
		exact := float64(len(byClass[class])) * float64(total) / float64(n)
		counts[class] = int(math.Floor(exact))
		assigned += counts[class]
		shares = append(shares, share{class: class, frac: exact - math.Floor(exact)})
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; assigned < total; i = (i + 1) % len(shares) {
		class := shares[i].class
		if counts[class] < len(byClass[class])-1 {
			counts[class]++
			assigned++
		}
	}

	// Classes that rounded down to zero borrow from the largest allocations.
	for _, class := range classes {
		for counts[class] == 0 {
			donor := largest(counts)
			counts[donor]--
			counts[class]++
		}
	}
	return counts
}

func largest(counts map[int]int) int {
	best, bestCount := -1, -1
	for class, count := range counts {
		if count > bestCount || (count == bestCount && class < best) {
			best, bestCount = class, count
		}
	}
	return best
}
