// Package model evaluates the exported earthquake classifier artifact.
//
// The artifact is a JSON document describing a trained scikit-learn style
// model. Two kinds are supported:
//
//	{"kind": "linear", "classes": [0, 1], "n_features": 4,
//	 "coefficients": [[...]], "intercepts": [...]}
//
//	{"kind": "forest", "classes": [0, 1], "n_features": 4,
//	 "trees": [{"nodes": [{"feature": 0, "threshold": 1.5, "left": 1, "right": 2, "value": [..]}, ...]}]}
//
// Tree nodes follow the sklearn layout: a node whose left child is -1 is a
// leaf, and a sample goes left when x[feature] <= threshold.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
)

// Artifact kinds.
const (
	KindLinear = "linear"
	KindForest = "forest"
)

const leafChild = -1

type artifact struct {
	Kind         string      `json:"kind"`
	Classes      []int       `json:"classes"`
	NFeatures    int         `json:"n_features"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
	Trees        []tree      `json:"trees"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

type node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// Model is a loaded classifier. It is immutable and safe for concurrent use.
type Model struct {
	art artifact
}

var _ domain.Classifier = (*Model)(nil)

// Load reads and validates the artifact at path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open model %s: %w", domain.ErrDataLoad, path, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

// Decode parses and validates an artifact.
func Decode(r io.Reader) (*Model, error) {
	var art artifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("%w: decode model: %w", domain.ErrDataLoad, err)
	}
	if err := art.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataLoad, err)
	}
	return &Model{art: art}, nil
}

// Kind returns the artifact kind.
func (m *Model) Kind() string { return m.art.Kind }

// Classes returns the class labels in score order.
func (m *Model) Classes() []int {
	return append([]int(nil), m.art.Classes...)
}

// Predict returns one class label per row.
func (m *Model) Predict(ctx context.Context, rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != m.art.NFeatures {
			return nil, fmt.Errorf("row %d: expected %d features, got %d", i, m.art.NFeatures, len(row))
		}
		var idx int
		switch m.art.Kind {
		case KindLinear:
			idx = m.predictLinear(row)
		case KindForest:
			idx = m.predictForest(row)
		}
		out[i] = m.art.Classes[idx]
	}
	return out, nil
}

func (m *Model) predictLinear(row []float64) int {
	coef := m.art.Coefficients
	// Binary models carry a single decision function for the positive class.
	if len(coef) == 1 {
		if dot(coef[0], row)+m.art.Intercepts[0] > 0 {
			return 1
		}
		return 0
	}
	scores := make([]float64, len(coef))
	for k := range coef {
		scores[k] = dot(coef[k], row) + m.art.Intercepts[k]
	}
	return argmax(scores)
}

// predictForest averages the normalized leaf distributions of every tree.
func (m *Model) predictForest(row []float64) int {
	votes := make([]float64, len(m.art.Classes))
	for _, t := range m.art.Trees {
		leaf := t.leaf(row)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		if total <= 0 {
			continue
		}
		for k, v := range leaf.Value {
			votes[k] += v / total
		}
	}
	return argmax(votes)
}

func (t tree) leaf(row []float64) node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == leafChild {
			return n
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (a artifact) validate() error {
	if len(a.Classes) < 2 {
		return errors.New("model needs at least two classes")
	}
	if a.NFeatures <= 0 {
		return errors.New("n_features must be positive")
	}

	switch a.Kind {
	case KindLinear:
		return a.validateLinear()
	case KindForest:
		return a.validateForest()
	default:
		return fmt.Errorf("unsupported model kind %q", a.Kind)
	}
}

func (a artifact) validateLinear() error {
	rows := len(a.Coefficients)
	binary := rows == 1 && len(a.Classes) == 2
	if !binary && rows != len(a.Classes) {
		return fmt.Errorf("linear model has %d coefficient rows for %d classes", rows, len(a.Classes))
	}
	if len(a.Intercepts) != rows {
		return fmt.Errorf("linear model has %d intercepts for %d coefficient rows", len(a.Intercepts), rows)
	}
	for k, c := range a.Coefficients {
		if len(c) != a.NFeatures {
			return fmt.Errorf("coefficient row %d has %d values, want %d", k, len(c), a.NFeatures)
		}
	}
	return nil
}

func (a artifact) validateForest() error {
	if len(a.Trees) == 0 {
		return errors.New("forest model has no trees")
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == leafChild {
				if len(n.Value) != len(a.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d values for %d classes", ti, ni, len(n.Value), len(a.Classes))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= a.NFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			// Children must point forward so traversal always terminates.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
