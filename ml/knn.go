package ml

import (
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// KNN is a uniform-weight k-nearest-neighbors classifier over Euclidean
// distance. Labels are class indices in [0, NumClasses).
type KNN struct {
	K          int         `json:"k"`
	NumClasses int         `json:"num_classes"`
	X          [][]float64 `json:"x"`
	Y          []int       `json:"y"`
}

func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

// Fit stores the training data. K is clamped to the number of samples.
func (m *KNN) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(y) == 0 {
		return errors.New("features or labels empty")
	}
	if len(X) != len(y) {
		return errors.New("features and labels size mismatch")
	}
	if m.K <= 0 {
		m.K = 5
	}
	if m.K > len(X) {
		m.K = len(X)
	}
	numClasses := 0
	for _, label := range y {
		if label < 0 {
			return errors.Errorf("negative class index %d", label)
		}
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}
	m.X = X
	m.Y = y
	m.NumClasses = numClasses
	return nil
}

// Predict returns the most voted class for each row, the lowest class index
// on ties.
func (m *KNN) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = floats.MaxIdx(p)
	}
	return out, nil
}

// PredictProba returns, per row, the fraction of the K neighbors in each class.
func (m *KNN) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.X) == 0 {
		return nil, ErrModelNotTrained
	}
	for _, row := range X {
		if len(row) != len(m.X[0]) {
			return nil, errors.Errorf("expected %d features, got %d", len(m.X[0]), len(row))
		}
	}

	out := make([][]float64, len(X))
	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(X) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, len(X))
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				out[i] = m.votes(X[i])
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}

func (m *KNN) votes(xi []float64) []float64 {
	type neighbor struct {
		d     float64
		label int
	}

	nbrs := make([]neighbor, 0, m.K+1)
	for j, xj := range m.X {
		n := neighbor{d: floats.Distance(xi, xj, 2), label: m.Y[j]}
		if len(nbrs) < m.K {
			nbrs = append(nbrs, n)
			sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })
		} else if n.d < nbrs[len(nbrs)-1].d {
			nbrs[len(nbrs)-1] = n
			sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })
		}
	}

	proba := make([]float64, m.NumClasses)
	for _, n := range nbrs {
		proba[n.label] += 1 / float64(len(nbrs))
	}
	return proba
}
