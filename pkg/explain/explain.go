// Package explain explains predictions of trained models with SHAP values.
//
// SHAP values are computed by a Backend. This package chooses the kind of
// explainer for a model, reduces per-class values and ranks features.
package explain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	xe "github.com/opst/mlengine/pkg/errors"
)

type Kind string

const (
	Tree   Kind = "tree"
	Linear Kind = "linear"
	Deep   Kind = "deep"
	Kernel Kind = "kernel"
)

var kindMarkers = []struct {
	kind    Kind
	markers []string
}{
	{Tree, []string{"XGB", "RandomForest", "GradientBoosting", "DecisionTree"}},
	{Linear, []string{"Linear", "Logistic", "Ridge", "Lasso", "ElasticNet"}},
	{Deep, []string{"Keras", "Tensor", "Torch", "Neural"}},
}

// KindFor chooses the explainer kind from the type name of a model, like "RandomForestClassifier".
func KindFor(modelType string) Kind {
	for _, km := range kindMarkers {
		for _, m := range km.markers {
			if strings.Contains(modelType, m) {
				return km.kind
			}
		}
	}
	return Kernel
}

// BackgroundSize is the number of background rows the kind needs out of n available.
func BackgroundSize(k Kind, n int) int {
	switch k {
	case Tree:
		return 0
	case Linear, Deep:
		return min(100, n)
	}
	return min(50, n)
}

type Model struct {
	ID           string   `json:"model_id"`
	Type         string   `json:"model_type"`
	FeatureNames []string `json:"feature_names"`
	ProblemType  string   `json:"problem_type"`
}

type ModelSource interface {
	Model(ctx context.Context, id string) (Model, error)
}

type Request struct {
	ModelID    string
	Explainer  Kind
	Background [][]any
	Rows       [][]any
}

// Values are SHAP values.
//
// For single output models, Matrix has a row per sample and a column per feature.
// For models with an output per class, PerClass holds such a matrix for each class.
type Values struct {
	Matrix   [][]float64
	PerClass [][][]float64
}

func (v Values) Len() int {
	if v.PerClass != nil {
		if len(v.PerClass) == 0 {
			return 0
		}
		return len(v.PerClass[0])
	}
	return len(v.Matrix)
}

// ErrMalformedValues tells SHAP values are not a matrix of samples by features.
var ErrMalformedValues = errors.New("malformed SHAP values")

// Validate checks v is rectangular: every class has the same number of rows,
// and every row has the same width. When features is positive, the width should be it.
func (v Values) Validate(features int) error {
	matrices := v.PerClass
	if matrices == nil {
		matrices = [][][]float64{v.Matrix}
	}
	width := features
	for c, m := range matrices {
		if len(m) != len(matrices[0]) {
			return xe.WrapWithNote(
				fmt.Sprintf("class %d has %d rows, but class 0 has %d", c, len(m), len(matrices[0])),
				ErrMalformedValues,
			)
		}
		for i, row := range m {
			if width <= 0 {
				width = len(row)
			}
			if len(row) != width {
				return xe.WrapWithNote(
					fmt.Sprintf("row %d (class %d) has %d values, but %d are expected", i, c, len(row), width),
					ErrMalformedValues,
				)
			}
		}
	}
	return nil
}

type Backend interface {
	// SHAPValues computes SHAP values of rows with the requested kind of explainer.
	SHAPValues(ctx context.Context, req Request) (Values, error)
}

const (
	DefaultMaxSamples = 100
	TopFeatures       = 10
)

var ErrNotExplained = errors.New("SHAP values are not calculated yet")

type Explainer struct {
	Model        Model
	FeatureNames []string

	// MaxSamples caps rows to be explained at once.
	MaxSamples int

	backend  Backend
	kind     Kind
	fellBack bool
	training [][]any

	values    *Values
	explained [][]any
}

// New builds an explainer for the model.
//
// background is training data. It is sampled down to the size the explainer kind needs.
func New(backend Backend, model Model, background [][]any) *Explainer {
	kind := KindFor(model.Type)
	e := &Explainer{
		Model:      model,
		MaxSamples: DefaultMaxSamples,
		backend:    backend,
		kind:       kind,
		training:   background,
	}
	e.FeatureNames = slices.Clone(model.FeatureNames)
	if len(e.FeatureNames) == 0 && 0 < len(background) {
		e.FeatureNames = defaultNames(len(background[0]))
	}
	return e
}

// Kind is the explainer kind in use. It becomes Kernel after a fallback.
func (e *Explainer) Kind() Kind {
	return e.kind
}

// FellBack tells the preferred explainer failed and Kernel is used instead.
func (e *Explainer) FellBack() bool {
	return e.fellBack
}

func defaultNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "Feature_" + strconv.Itoa(i)
	}
	return names
}

// sample picks n rows at random with a fixed seed, keeping their order.
func sample(rows [][]any, n int) [][]any {
	if len(rows) <= n {
		return rows
	}
	if n <= 0 {
		return nil
	}
	rnd := rand.New(rand.NewPCG(0, 0))
	idx := rnd.Perm(len(rows))[:n]
	slices.Sort(idx)
	out := make([][]any, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// Explain computes SHAP values for up to MaxSamples leading rows.
//
// When the preferred explainer fails, it falls back to Kernel and retries once.
func (e *Explainer) Explain(ctx context.Context, rows [][]any) (Values, error) {
	if 0 < e.MaxSamples && e.MaxSamples < len(rows) {
		rows = rows[:e.MaxSamples]
	}
	if len(e.FeatureNames) == 0 && 0 < len(rows) {
		e.FeatureNames = defaultNames(len(rows[0]))
	}

	v, err := e.backend.SHAPValues(ctx, e.request(rows))
	if err != nil && e.kind != Kernel && ctx.Err() == nil {
		e.kind = Kernel
		e.fellBack = true
		v, err = e.backend.SHAPValues(ctx, e.request(rows))
	}
	if err != nil {
		return Values{}, xe.WrapWithNote("failed to calculate SHAP values", err)
	}
	if v.Len() != len(rows) {
		return Values{}, xe.WrapWithNote(
			fmt.Sprintf("SHAP values for %d samples, but %d are requested", v.Len(), len(rows)),
			ErrMalformedValues,
		)
	}
	if err := v.Validate(len(e.FeatureNames)); err != nil {
		return Values{}, err
	}

	e.values = &v
	e.explained = rows
	return v, nil
}

func (e *Explainer) request(rows [][]any) Request {
	return Request{
		ModelID:    e.Model.ID,
		Explainer:  e.kind,
		Background: sample(e.training, BackgroundSize(e.kind, len(e.training))),
		Rows:       rows,
	}
}

type Contribution struct {
	Feature   string  `json:"feature"`
	Value     any     `json:"value"`
	SHAPValue float64 `json:"shap_value"`
}

// ExplainPrediction explains a single row, returning the top features by |SHAP value|.
//
// For binary classifiers, values of the positive class are used.
// For other multiclass models, values of the first class are used.
func (e *Explainer) ExplainPrediction(ctx context.Context, row []any) ([]Contribution, error) {
	v, err := e.Explain(ctx, [][]any{row})
	if err != nil {
		return nil, err
	}
	shap := forSample(v)[0]

	cs := make([]Contribution, 0, len(shap))
	for i, s := range shap {
		var value any
		if i < len(row) {
			value = row[i]
		}
		cs = append(cs, Contribution{Feature: e.featureName(i), Value: value, SHAPValue: s})
	}
	slices.SortStableFunc(cs, func(a, b Contribution) int {
		return cmp.Compare(math.Abs(b.SHAPValue), math.Abs(a.SHAPValue))
	})
	if TopFeatures < len(cs) {
		cs = cs[:TopFeatures]
	}
	return cs, nil
}

func forSample(v Values) [][]float64 {
	switch {
	case v.PerClass == nil:
		return v.Matrix
	case len(v.PerClass) == 2:
		return v.PerClass[1]
	}
	return v.PerClass[0]
}

type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// GlobalImportance is the mean |SHAP value| of each feature over the last explained rows, largest first.
//
// For binary classifiers, the positive class is used.
// For other multiclass models, |SHAP value| is averaged over classes first.
func (e *Explainer) GlobalImportance() ([]Importance, error) {
	if e.values == nil {
		return nil, ErrNotExplained
	}
	ranked := rankColumns(forImportance(*e.values))
	imp := make([]Importance, len(ranked))
	for i, c := range ranked {
		imp[i] = Importance{Feature: e.featureName(c.index), Importance: c.meanAbs}
	}
	return imp, nil
}

type column struct {
	index   int
	meanAbs float64
}

// rankColumns orders columns of m by mean absolute value, largest first. Ties keep their order.
func rankColumns(m [][]float64) []column {
	if len(m) == 0 {
		return []column{}
	}
	cols := make([]column, len(m[0]))
	for j := range cols {
		s := 0.0
		for i := range m {
			s += math.Abs(m[i][j])
		}
		cols[j] = column{index: j, meanAbs: s / float64(len(m))}
	}
	slices.SortStableFunc(cols, func(a, b column) int { return cmp.Compare(b.meanAbs, a.meanAbs) })
	return cols
}

func forImportance(v Values) [][]float64 {
	switch {
	case v.PerClass == nil:
		return v.Matrix
	case len(v.PerClass) == 2:
		return v.PerClass[1]
	case len(v.PerClass) == 0:
		return nil
	}

	classes := float64(len(v.PerClass))
	out := make([][]float64, len(v.PerClass[0]))
	for i := range out {
		out[i] = make([]float64, len(v.PerClass[0][i]))
		for _, m := range v.PerClass {
			for j, s := range m[i] {
				out[i][j] += math.Abs(s) / classes
			}
		}
	}
	return out
}

func (e *Explainer) featureName(i int) string {
	if i < len(e.FeatureNames) {
		return e.FeatureNames[i]
	}
	return "Feature_" + strconv.Itoa(i)
}

// Summary is per-feature SHAP values of explained rows, for beeswarm plots.
type Summary struct {
	Features []string `json:"features"`

	// SHAPValues and FeatureValues are indexed by [feature][sample].
	SHAPValues    [][]float64 `json:"shap_values"`
	FeatureValues [][]any     `json:"feature_values"`

	Samples int `json:"sample_count"`
}

// Summary returns values of the topK most important features over the last explained rows.
// Features are ordered as GlobalImportance does. topK <= 0 means every feature.
//
// SHAP values are those ExplainPrediction would use, so they keep their sign.
func (e *Explainer) Summary(topK int) (Summary, error) {
	if e.values == nil {
		return Summary{}, ErrNotExplained
	}
	ranked := rankColumns(forImportance(*e.values))
	if 0 < topK && topK < len(ranked) {
		ranked = ranked[:topK]
	}

	m := forSample(*e.values)
	s := Summary{
		Features:      make([]string, 0, len(ranked)),
		SHAPValues:    make([][]float64, 0, len(ranked)),
		FeatureValues: make([][]any, 0, len(ranked)),
		Samples:       len(m),
	}
	for _, c := range ranked {
		j := c.index
		shap := make([]float64, len(m))
		values := make([]any, len(m))
		for i := range m {
			if j < len(m[i]) {
				shap[i] = m[i][j]
			}
			if i < len(e.explained) && j < len(e.explained[i]) {
				values[i] = e.explained[i][j]
			}
		}
		s.Features = append(s.Features, e.featureName(j))
		s.SHAPValues = append(s.SHAPValues, shap)
		s.FeatureValues = append(s.FeatureValues, values)
	}
	return s, nil
}
