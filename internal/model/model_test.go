package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const binaryLinear = `{
  "kind": "linear",
  "classes": [0, 1],
  "n_features": 4,
  "coefficients": [[1.0, -0.5, 0.0, 2.0]],
  "intercepts": [-1.0]
}`

const multiLinear = `{
  "kind": "linear",
  "classes": [0, 1, 2],
  "n_features": 2,
  "coefficients": [[1, 0], [0, 1], [0, 0]],
  "intercepts": [0, 0, 0.5]
}`

// Two stumps on feature 0 and one on feature 1.
const forest = `{
  "kind": "forest",
  "classes": [0, 1],
  "n_features": 2,
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 1.0, "left": 1, "right": 2},
      {"left": -1, "right": -1, "value": [8, 2]},
      {"left": -1, "right": -1, "value": [1, 9]}
    ]},
    {"nodes": [
      {"feature": 0, "threshold": 2.0, "left": 1, "right": 2},
      {"left": -1, "right": -1, "value": [3, 1]},
      {"left": -1, "right": -1, "value": [0, 5]}
    ]},
    {"nodes": [
      {"feature": 1, "threshold": 0.0, "left": 1, "right": 2},
      {"left": -1, "right": -1, "value": [1, 1]},
      {"left": -1, "right": -1, "value": [0, 4]}
    ]}
  ]
}`

func decode(t *testing.T, doc string) *Model {
	t.Helper()
	m, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return m
}

func TestPredict_BinaryLinear(t *testing.T) {
	m := decode(t, binaryLinear)
	assert.Equal(t, KindLinear, m.Kind())

	got, err := m.Predict(context.Background(), [][]float64{
		{2, 0, 0, 0}, // 2 - 1 = 1 > 0
		{1, 0, 0, 0}, // 1 - 1 = 0, not > 0
		{0, 0, 0, 1}, // 2 - 1 = 1
		{0, 4, 0, 0}, // -2 - 1
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 0}, got)
}

func TestPredict_MultiClassLinear(t *testing.T) {
	m := decode(t, multiLinear)

	got, err := m.Predict(context.Background(), [][]float64{
		{1, 0},
		{0, 1},
		{0, 0},
		{1, 1}, // tie between classes 0 and 1 goes to 0
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 0}, got)
}

func TestPredict_Forest(t *testing.T) {
	m := decode(t, forest)
	assert.Equal(t, KindForest, m.Kind())

	got, err := m.Predict(context.Background(), [][]float64{
		{0.5, -1}, // 0.8+0.75+0.5 for class 0 vs 0.2+0.25+0.5
		{3, 1},    // every tree favours 1
		{1.5, -1}, // 0.1+0.75+0.5 vs 0.9+0.25+0.5
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, got)
}

func TestPredict_Deterministic(t *testing.T) {
	m := decode(t, forest)
	row := [][]float64{{1.2, 0.3}}

	first, err := m.Predict(context.Background(), row)
	require.NoError(t, err)
	for range 10 {
		again, err := m.Predict(context.Background(), row)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredict_WrongArity(t *testing.T) {
	m := decode(t, binaryLinear)
	_, err := m.Predict(context.Background(), [][]float64{{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 features, got 2")
}

func TestPredict_CanceledContext(t *testing.T) {
	m := decode(t, binaryLinear)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Predict(ctx, [][]float64{{1, 2, 3, 4}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict_EmptyRows(t *testing.T) {
	m := decode(t, binaryLinear)
	got, err := m.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed json", `{"kind":`, "decode model"},
		{"unknown kind", `{"kind":"svm","classes":[0,1],"n_features":4}`, `unsupported model kind "svm"`},
		{"single class", `{"kind":"linear","classes":[1],"n_features":4}`, "at least two classes"},
		{"no features", `{"kind":"linear","classes":[0,1],"n_features":0}`, "n_features must be positive"},
		{
			"coefficient rows mismatch",
			`{"kind":"linear","classes":[0,1,2],"n_features":1,"coefficients":[[1],[2]],"intercepts":[0,0]}`,
			"2 coefficient rows for 3 classes",
		},
		{
			"intercept mismatch",
			`{"kind":"linear","classes":[0,1],"n_features":1,"coefficients":[[1]],"intercepts":[]}`,
			"0 intercepts",
		},
		{
			"coefficient width",
			`{"kind":"linear","classes":[0,1],"n_features":2,"coefficients":[[1]],"intercepts":[0]}`,
			"has 1 values, want 2",
		},
		{"no trees", `{"kind":"forest","classes":[0,1],"n_features":1,"trees":[]}`, "no trees"},
		{
			"backward child",
			`{"kind":"forest","classes":[0,1],"n_features":1,"trees":[{"nodes":[{"feature":0,"threshold":0,"left":0,"right":0}]}]}`,
			"invalid children",
		},
		{
			"leaf width",
			`{"kind":"forest","classes":[0,1],"n_features":1,"trees":[{"nodes":[{"left":-1,"right":-1,"value":[1]}]}]}`,
			"1 values for 2 classes",
		},
		{
			"split feature out of range",
			`{"kind":"forest","classes":[0,1],"n_features":1,"trees":[{"nodes":[{"feature":3,"threshold":0,"left":1,"right":2},{"left":-1,"right":-1,"value":[1,0]},{"left":-1,"right":-1,"value":[0,1]}]}]}`,
			"splits on feature 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDataLoad)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earthquake_model.json")
	require.NoError(t, os.WriteFile(path, []byte(binaryLinear), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, m.Classes())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataLoad)
}
