package forecast

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ForestConfig tunes the random forest regressor.
type ForestConfig struct {
	Trees    int   `json:"trees"`
	MaxDepth int   `json:"max_depth"`
	Seed     int64 `json:"seed"`
}

// SetDefaults applies the reference hyperparameters.
func (c *ForestConfig) SetDefaults() {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 10
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// RandomForest is a bagged ensemble of CART regression trees. Each tree is
// fit on a bootstrap sample of the training rows; predictions average the
// per-tree outputs. The seed fixes both bootstrapping and split tie-breaks so
// a training run is reproducible.
type RandomForest struct {
	Config ForestConfig `json:"config"`
	Trees  []regTree    `json:"trees"`
}

// NewRandomForest returns a forest with the given configuration, defaulted
// where unset.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	cfg.SetDefaults()
	return &RandomForest{Config: cfg}
}

// Fit trains the ensemble. It fails on empty or ragged input.
func (f *RandomForest) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("training matrix and targets must be non-empty and aligned")
	}
	width := len(x[0])
	for _, row := range x {
		if len(row) != width {
			return errors.New("ragged training matrix")
		}
	}
	rng := rand.New(rand.NewSource(f.Config.Seed))
	f.Trees = make([]regTree, f.Config.Trees)
	for i := range f.Trees {
		idx := bootstrap(rng, len(x))
		bx := make([][]float64, len(idx))
		by := make([]float64, len(idx))
		for j, k := range idx {
			bx[j] = x[k]
			by[j] = y[k]
		}
		f.Trees[i] = growTree(bx, by, f.Config.MaxDepth)
	}
	return nil
}

// Predict averages the tree outputs for one feature vector.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// treeNode is one node of a serialized regression tree. Children reference
// node indices inside the tree's flat node slice; Leaf nodes carry the mean
// target of their partition.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

type regTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t regTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

const minSplitSamples = 2

func growTree(x [][]float64, y []float64, maxDepth int) regTree {
	t := regTree{}
	t.grow(x, y, maxDepth)
	return t
}

func (t *regTree) grow(x [][]float64, y []float64, depth int) int {
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{})

	if depth == 0 || len(y) < minSplitSamples || constant(y) {
		t.Nodes[self] = treeNode{Leaf: true, Value: floats.Sum(y) / float64(len(y))}
		return self
	}
	feat, thresh, ok := bestSplit(x, y)
	if !ok {
		t.Nodes[self] = treeNode{Leaf: true, Value: floats.Sum(y) / float64(len(y))}
		return self
	}

	var lx, rx [][]float64
	var ly, ry []float64
	for i, row := range x {
		if row[feat] <= thresh {
			lx = append(lx, row)
			ly = append(ly, y[i])
		} else {
			rx = append(rx, row)
			ry = append(ry, y[i])
		}
	}
	left := t.grow(lx, ly, depth-1)
	right := t.grow(rx, ry, depth-1)
	t.Nodes[self] = treeNode{Feature: feat, Threshold: thresh, Left: left, Right: right}
	return self
}

func constant(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

// bestSplit scans every feature for the threshold minimizing the summed
// squared error of the two partitions. Per feature the rows are sorted once
// and candidate thresholds evaluated with running sums, so the scan is
// O(features * n log n).
func bestSplit(x [][]float64, y []float64) (feature int, threshold float64, ok bool) {
	n := len(y)
	totalSum := floats.Sum(y)
	totalSq := 0.0
	for _, v := range y {
		totalSq += v * v
	}

	best := math.Inf(1)
	order := make([]int, n)
	for f := 0; f < len(x[0]); f++ {
		for i := range order {
			order[i] = i
		}
		sortByFeature(order, x, f)

		leftSum, leftSq := 0.0, 0.0
		for i := 0; i < n-1; i++ {
			v := y[order[i]]
			leftSum += v
			leftSq += v * v
			// Split only between distinct feature values.
			if x[order[i]][f] == x[order[i+1]][f] {
				continue
			}
			nl := float64(i + 1)
			nr := float64(n - i - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < best {
				best = sse
				feature = f
				threshold = (x[order[i]][f] + x[order[i+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func sortByFeature(order []int, x [][]float64, f int) {
	sort.Slice(order, func(i, j int) bool {
		return x[order[i]][f] < x[order[j]][f]
	})
}
