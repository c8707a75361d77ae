package forest

import (
	"math/rand/v2"
	"slices"
)

// node is a tree node stored in a flat slice. Feature < 0 marks a leaf.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type tree []node

func (t tree) predict(row []float64) float64 {
	i := 0
	for t[i].Feature >= 0 {
		if row[t[i].Feature] <= t[i].Threshold {
			i = t[i].Left
		} else {
			i = t[i].Right
		}
	}
	return t[i].Value
}

type grower struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minSplit int
	nodes    tree
}

// fitTree grows one CART regression tree on a bootstrap sample drawn from rng.
func fitTree(x [][]float64, y []float64, maxDepth, minSplit int, rng *rand.Rand) tree {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = rng.IntN(len(y))
	}
	g := &grower{x: x, y: y, maxDepth: maxDepth, minSplit: minSplit}
	g.grow(idx, 0)
	return g.nodes
}

func (g *grower) grow(idx []int, depth int) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, node{Feature: -1, Value: g.mean(idx)})

	if depth >= g.maxDepth || len(idx) < g.minSplit || g.pure(idx) {
		return id
	}
	feature, threshold, ok := g.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[id].Feature = feature
	g.nodes[id].Threshold = threshold
	g.nodes[id].Left = l
	g.nodes[id].Right = r
	return id
}

// bestSplit scans every feature for the threshold minimizing the summed
// squared error of both children. Ties keep the first candidate found.
func (g *grower) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	sorted := make([]int, n)
	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	best := 0.0

	for f := range g.x[idx[0]] {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, b int) int {
			switch va, vb := g.x[a][f], g.x[b][f]; {
			case va < vb:
				return -1
			case va > vb:
				return 1
			default:
				return 0
			}
		})
		for k, i := range sorted {
			prefix[k+1] = prefix[k] + g.y[i]
			prefixSq[k+1] = prefixSq[k] + g.y[i]*g.y[i]
		}
		total, totalSq := prefix[n], prefixSq[n]

		for k := 1; k < n; k++ {
			lo, hi := g.x[sorted[k-1]][f], g.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			sl, sr := prefix[k], total-prefix[k]
			sse := (prefixSq[k] - sl*sl/nl) + ((totalSq - prefixSq[k]) - sr*sr/nr)
			if !ok || sse < best {
				best = sse
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (g *grower) mean(idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += g.y[i]
	}
	return sum / float64(len(idx))
}

func (g *grower) pure(idx []int) bool {
	first := g.y[idx[0]]
	for _, i := range idx[1:] {
		if g.y[i] != first {
			return false
		}
	}
	return true
}
