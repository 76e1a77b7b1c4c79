package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// Leaf marks a node without children in Tree.Left and Tree.Right.
const Leaf = -1

// Tree is a binary decision tree in flat array form, node 0 being the root.
// A sample goes left when v[Feature[n]] <= Threshold[n]. Value holds the
// positive-class fraction at each leaf.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.Value)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n {
		return errors.New("tree node arrays differ in length")
	}
	for i := range n {
		l, r := t.Left[i], t.Right[i]
		if l == Leaf || r == Leaf {
			if l != r {
				return fmt.Errorf("node %d has a single child", i)
			}
			if v := t.Value[i]; math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("leaf %d value %v outside [0,1]", i, v)
			}
			continue
		}
		// children always follow their parent, so traversal terminates
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, model has %d", i, f, nFeatures)
		}
	}
	return nil
}

func (t *Tree) predict(v features.Vector) float64 {
	n := 0
	for t.Left[n] != Leaf {
		if v[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return t.Value[n]
}

// RandomForest averages the leaf probabilities of its trees.
type RandomForest struct {
	header
	Trees []Tree `json:"trees"`
}

// NewRandomForest returns a forest over nFeatures-wide vectors.
func NewRandomForest(nFeatures int, trees ...Tree) (*RandomForest, error) {
	rf := &RandomForest{
		header: header{Kind: KindRandomForest, NFeatures: nFeatures},
		Trees:  trees,
	}
	if err := rf.validate(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (m *RandomForest) validate() error {
	if len(m.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(m.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// NumFeatures returns the vector width the model was trained on.
func (m *RandomForest) NumFeatures() int { return m.NFeatures }

// PredictProba returns the mean positive-class probability over all trees.
func (m *RandomForest) PredictProba(v features.Vector) (float64, error) {
	if err := checkWidth(m.NFeatures, v); err != nil {
		return 0, err
	}
	var sum float64
	for i := range m.Trees {
		sum += m.Trees[i].predict(v)
	}
	return sum / float64(len(m.Trees)), nil
}
