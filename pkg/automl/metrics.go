package automl

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	xe "github.com/opst/mlengine/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// labels are compared by their text, so 1 and "1" are the same class.
func label(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func labels(vs []any) []string {
	ls := make([]string, len(vs))
	for i, v := range vs {
		ls[i] = label(v)
	}
	return ls
}

// compareLabels orders numeric labels by value and others by text.
func compareLabels(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(fa, fb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// classes are distinct labels, sorted.
func classes(ls ...[]string) []string {
	seen := map[string]struct{}{}
	cs := []string{}
	for _, l := range ls {
		for _, c := range l {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cs = append(cs, c)
		}
	}
	slices.SortFunc(cs, compareLabels)
	return cs
}

func Accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// WeightedPRF returns precision, recall and F1 averaged over classes,
// weighted by the number of true instances of each class.
//
// Undefined ratios (no prediction, or no instance of a class) count as 0.
func WeightedPRF(yTrue, yPred []string) (precision, recall, f1 float64) {
	if len(yTrue) == 0 {
		return 0, 0, 0
	}
	tp := map[string]int{}
	predicted := map[string]int{}
	support := map[string]int{}
	for i := range yTrue {
		support[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
		}
	}

	total := float64(len(yTrue))
	for _, c := range classes(yTrue, yPred) {
		if support[c] == 0 {
			continue
		}
		w := float64(support[c]) / total
		p := 0.0
		if predicted[c] != 0 {
			p = float64(tp[c]) / float64(predicted[c])
		}
		r := float64(tp[c]) / float64(support[c])
		f := 0.0
		if p+r != 0 {
			f = 2 * p * r / (p + r)
		}
		precision += w * p
		recall += w * r
		f1 += w * f
	}
	return precision, recall, f1
}

// binaryAUC is the area under the ROC curve, computed as the
// probability that a positive scores above a negative (ties count half).
func binaryAUC(positive []bool, score []float64) (float64, error) {
	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(score[a], score[b]) })

	// average ranks over ties, starting from 1
	ranks := make([]float64, len(score))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && score[idx[j+1]] == score[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}

	nPos, nNeg := 0, 0
	sumPos := 0.0
	for i, p := range positive {
		if p {
			nPos++
			sumPos += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, xe.New("only one class present in y_true")
	}
	u := sumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// ROCAUC scores class probabilities.
//
// proba has a column per class of yTrue in sorted order.
// With 2 classes, the second column is the score of the positive class.
// With more, it is the one-vs-rest AUC averaged with class prevalence as weights.
func ROCAUC(yTrue []string, proba [][]float64) (float64, error) {
	cs := classes(yTrue)
	if len(cs) < 2 {
		return 0, xe.New("only one class present in y_true")
	}
	if len(proba) != len(yTrue) {
		return 0, xe.Errorf("probabilities for %d samples, but %d labels", len(proba), len(yTrue))
	}
	for _, row := range proba {
		if len(row) != len(cs) {
			return 0, xe.Errorf("probabilities have %d columns, but there are %d classes", len(row), len(cs))
		}
	}

	column := func(j int) []float64 {
		col := make([]float64, len(proba))
		for i := range proba {
			col[i] = proba[i][j]
		}
		return col
	}
	isClass := func(c string) []bool {
		pos := make([]bool, len(yTrue))
		for i, y := range yTrue {
			pos[i] = y == c
		}
		return pos
	}

	if len(cs) == 2 {
		return binaryAUC(isClass(cs[1]), column(1))
	}

	aucs := make([]float64, len(cs))
	weights := make([]float64, len(cs))
	for j, c := range cs {
		pos := isClass(c)
		auc, err := binaryAUC(pos, column(j))
		if err != nil {
			return 0, err
		}
		aucs[j] = auc
		for _, p := range pos {
			if p {
				weights[j]++
			}
		}
	}
	return stat.Mean(aucs, weights), nil
}

func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yTrue[i] - yPred[i])
	}
	return s / float64(len(yTrue))
}

// R2 is the coefficient of determination.
//
// When y_true is constant, it is 1 for a perfect prediction and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	res, tot := 0.0, 0.0
	for i := range yTrue {
		res += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
		tot += (yTrue[i] - mean) * (yTrue[i] - mean)
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}

func floats(vs []any) ([]float64, error) {
	fs := make([]float64, len(vs))
	for i, v := range vs {
		switch x := v.(type) {
		case float64:
			fs[i] = x
		case float32:
			fs[i] = float64(x)
		case int:
			fs[i] = float64(x)
		case int64:
			fs[i] = float64(x)
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, xe.Wrap(err)
			}
			fs[i] = f
		default:
			return nil, xe.Errorf("not a number: %v", v)
		}
	}
	return fs, nil
}
