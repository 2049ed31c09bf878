package ml

import (
    "encoding/json"
    "math"
    "sort"

    "github.com/pkg/errors"
)

// DecisionTree is a Gini-split classification tree. It does not produce class
// probabilities, so predictions made with it carry no confidence.
type DecisionTree struct {
    MaxDepth int
    nodes    []TreeNode
}

type TreeNode struct {
    FeatureIdx int     `json:"feature_idx"`
    Threshold  float64 `json:"threshold"`
    LeftChild  int     `json:"left_child"`
    RightChild int     `json:"right_child"`
    ClassLabel int     `json:"class_label"`
    IsLeaf     bool    `json:"is_leaf"`
}

type decisionTreeState struct {
    MaxDepth int        `json:"max_depth"`
    Nodes    []TreeNode `json:"nodes"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
    return &DecisionTree{MaxDepth: maxDepth}
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
    if len(features) == 0 || len(labels) == 0 {
        return errors.New("features or labels empty")
    }
    if len(features) != len(labels) {
        return errors.New("features and labels size mismatch")
    }
    if dt.MaxDepth <= 0 {
        dt.MaxDepth = 3
    }

    dt.nodes = dt.buildNode(features, labels, 0, dt.MaxDepth)
    return nil
}

func (dt *DecisionTree) Predict(X [][]float64) ([]int, error) {
    out := make([]int, len(X))
    for i, features := range X {
        label, err := dt.predictOne(features)
        if err != nil {
            return nil, err
        }
        out[i] = label
    }
    return out, nil
}

func (dt *DecisionTree) predictOne(features []float64) (int, error) {
    if len(dt.nodes) == 0 {
        return 0, ErrModelNotTrained
    }
    idx := 0
    for {
        node := dt.nodes[idx]
        if node.IsLeaf {
            return node.ClassLabel, nil
        }
        if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
            return 0, errors.New("feature index out of range")
        }
        if features[node.FeatureIdx] <= node.Threshold {
            idx = node.LeftChild
        } else {
            idx = node.RightChild
        }
        if idx < 0 || idx >= len(dt.nodes) {
            return 0, errors.New("invalid tree state")
        }
    }
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
    if len(dt.nodes) == 0 {
        return nil, ErrModelNotTrained
    }
    return json.Marshal(decisionTreeState{MaxDepth: dt.MaxDepth, Nodes: dt.nodes})
}

func (dt *DecisionTree) UnmarshalJSON(payload []byte) error {
    var state decisionTreeState
    if err := json.Unmarshal(payload, &state); err != nil {
        return err
    }
    if len(state.Nodes) == 0 {
        return errors.New("decision tree has no nodes")
    }
    dt.MaxDepth = state.MaxDepth
    dt.nodes = state.Nodes
    return nil
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int, maxDepth int) []TreeNode {
    label := majorityLabel(labels)
    leaf := []TreeNode{{
        FeatureIdx: -1,
        LeftChild:  -1,
        RightChild: -1,
        ClassLabel: label,
        IsLeaf:     true,
    }}
    if depth >= maxDepth || isPure(labels) {
        return leaf
    }

    bestFeature, threshold, ok := findBestSplit(features, labels)
    if !ok {
        return leaf
    }

    leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
    if len(leftLabels) == 0 || len(rightLabels) == 0 {
        return leaf
    }

    leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, maxDepth)
    rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, maxDepth)

    root := TreeNode{
        FeatureIdx: bestFeature,
        Threshold:  threshold,
        LeftChild:  1,
        RightChild: 1 + len(leftNodes),
        ClassLabel: label,
        IsLeaf:     false,
    }

    nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
    nodes = append(nodes, root)
    nodes = append(nodes, offsetNodes(leftNodes, 1)...)
    nodes = append(nodes, offsetNodes(rightNodes, 1+len(leftNodes))...)
    return nodes
}

// offsetNodes shifts child pointers of a subtree placed at offset.
func offsetNodes(nodes []TreeNode, offset int) []TreeNode {
    out := make([]TreeNode, len(nodes))
    for i, node := range nodes {
        if !node.IsLeaf {
            node.LeftChild += offset
            node.RightChild += offset
        }
        out[i] = node
    }
    return out
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
    featureCount := len(features[0])
    bestFeature := -1
    bestThreshold := 0.0
    bestImpurity := math.MaxFloat64

    for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
        values := make([]float64, len(features))
        for i := range features {
            values[i] = features[i][featureIdx]
        }
        threshold := median(values)
        leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
        if len(leftLabels) == 0 || len(rightLabels) == 0 {
            continue
        }
        impurity := weightedGini(leftLabels, rightLabels)
        if impurity < bestImpurity {
            bestImpurity = impurity
            bestFeature = featureIdx
            bestThreshold = threshold
        }
    }
    if bestFeature == -1 {
        return -1, 0, false
    }
    return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
    leftFeatures := make([][]float64, 0)
    leftLabels := make([]int, 0)
    rightFeatures := make([][]float64, 0)
    rightLabels := make([]int, 0)
    for i, feature := range features {
        if feature[featureIdx] <= threshold {
            leftFeatures = append(leftFeatures, feature)
            leftLabels = append(leftLabels, labels[i])
        } else {
            rightFeatures = append(rightFeatures, feature)
            rightLabels = append(rightLabels, labels[i])
        }
    }
    return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
    leftLabels := make([]int, 0)
    rightLabels := make([]int, 0)
    for i, feature := range features {
        if feature[featureIdx] <= threshold {
            leftLabels = append(leftLabels, labels[i])
        } else {
            rightLabels = append(rightLabels, labels[i])
        }
    }
    return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
    leftWeight := float64(len(leftLabels))
    rightWeight := float64(len(rightLabels))
    total := leftWeight + rightWeight
    return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
    if len(labels) == 0 {
        return 0
    }
    counts := make(map[int]int)
    for _, label := range labels {
        counts[label]++
    }
    impurity := 1.0
    for _, count := range counts {
        prob := float64(count) / float64(len(labels))
        impurity -= prob * prob
    }
    return impurity
}

func median(values []float64) float64 {
    if len(values) == 0 {
        return 0
    }
    sorted := append([]float64(nil), values...)
    sort.Float64s(sorted)
    mid := len(sorted) / 2
    if len(sorted)%2 == 0 {
        return (sorted[mid-1] + sorted[mid]) / 2
    }
    return sorted[mid]
}

// majorityLabel returns the most common label, the smallest on ties.
func majorityLabel(labels []int) int {
    counts := make(map[int]int)
    for _, label := range labels {
        counts[label]++
    }
    bestLabel := 0
    bestCount := -1
    for label, count := range counts {
        if count > bestCount || (count == bestCount && label < bestLabel) {
            bestCount = count
            bestLabel = label
        }
    }
    return bestLabel
}

func isPure(labels []int) bool {
    if len(labels) == 0 {
        return true
    }
    first := labels[0]
    for _, label := range labels[1:] {
        if label != first {
            return false
        }
    }
    return true
}
