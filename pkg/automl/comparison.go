package automl

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

var (
	classificationMetrics = []string{"accuracy", "precision", "recall", "f1_score", "roc_auc"}
	regressionMetrics     = []string{"rmse", "mae", "r2", "mse"}
)

// Comparison compares models on the same test data.
type Comparison struct {
	ProblemType ProblemType
	entries     []ComparisonEntry
}

type ComparisonEntry struct {
	Rank    int                `json:"rank"`
	Name    string             `json:"name"`
	Metrics map[string]float64 `json:"metrics"`
}

func NewComparison(pt ProblemType) *Comparison {
	return &Comparison{ProblemType: pt}
}

func (c *Comparison) classification() bool {
	return c.ProblemType == Classification
}

// MetricNames are metrics of entries, in column order.
func (c *Comparison) MetricNames() []string {
	if c.classification() {
		return slices.Clone(classificationMetrics)
	}
	return slices.Clone(regressionMetrics)
}

func (c *Comparison) primary() string {
	if c.classification() {
		return "accuracy"
	}
	return "r2"
}

// Add scores predictions of a model.
//
// yProba is optional. Without it, or when it does not fit yTrue, roc_auc is 0.
// It is ignored for regression.
func (c *Comparison) Add(name string, yTrue, yPred []any, yProba [][]float64) error {
	if len(yTrue) != len(yPred) {
		return xe.Errorf("%s: %d labels but %d predictions", name, len(yTrue), len(yPred))
	}

	m := map[string]float64{}
	if c.classification() {
		t, p := labels(yTrue), labels(yPred)
		m["accuracy"] = Accuracy(t, p)
		m["precision"], m["recall"], m["f1_score"] = WeightedPRF(t, p)
		m["roc_auc"] = 0
		if yProba != nil {
			if auc, err := ROCAUC(t, yProba); err == nil {
				m["roc_auc"] = auc
			}
		}
	} else {
		t, err := floats(yTrue)
		if err != nil {
			return xe.WrapWithNote(name+": y_true", err)
		}
		p, err := floats(yPred)
		if err != nil {
			return xe.WrapWithNote(name+": y_pred", err)
		}
		mse := MSE(t, p)
		m["mse"] = mse
		m["rmse"] = math.Sqrt(mse)
		m["mae"] = MAE(t, p)
		m["r2"] = R2(t, p)
	}

	c.entries = append(c.entries, ComparisonEntry{Name: name, Metrics: m})
	return nil
}

// Table ranks entries by accuracy (classification) or r2 (regression), best first.
func (c *Comparison) Table() []ComparisonEntry {
	key := c.primary()
	table := slices.Clone(c.entries)
	slices.SortStableFunc(table, func(a, b ComparisonEntry) int {
		switch x, y := a.Metrics[key], b.Metrics[key]; {
		case x > y:
			return -1
		case x < y:
			return 1
		}
		return 0
	})
	for i := range table {
		table[i].Rank = i + 1
	}
	return table
}

// Best is the top entry of Table. It returns false if nothing is added.
func (c *Comparison) Best() (ComparisonEntry, bool) {
	t := c.Table()
	if len(t) == 0 {
		return ComparisonEntry{}, false
	}
	return t[0], true
}

func (c *Comparison) frame() (*frame.Frame, error) {
	metrics := c.MetricNames()
	cols := append([]string{"rank", "name"}, metrics...)
	rows := [][]any{}
	for _, e := range c.Table() {
		row := []any{e.Rank, e.Name}
		for _, m := range metrics {
			row = append(row, e.Metrics[m])
		}
		rows = append(rows, row)
	}
	return frame.FromRows(cols, rows)
}

const (
	ruleHeavy = "======================================================================"
	ruleLight = "----------------------------------------------------------------------"
)

// WriteReport writes comparison_table.csv and comparison_report.txt into dir.
func (c *Comparison) WriteReport(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xe.Wrap(err)
	}

	f, err := c.frame()
	if err != nil {
		return err
	}
	csvFile, err := os.Create(filepath.Join(dir, "comparison_table.csv"))
	if err != nil {
		return xe.Wrap(err)
	}
	if err := f.WriteCSV(csvFile); err != nil {
		csvFile.Close()
		return err
	}
	if err := csvFile.Close(); err != nil {
		return xe.Wrap(err)
	}

	return xe.Wrap(os.WriteFile(filepath.Join(dir, "comparison_report.txt"), []byte(c.Report()), 0o644))
}

// Report renders the comparison as text.
func (c *Comparison) Report() string {
	b := new(strings.Builder)
	fmt.Fprintln(b, ruleHeavy)
	fmt.Fprintln(b, "MODEL COMPARISON REPORT")
	fmt.Fprintln(b, ruleHeavy)
	fmt.Fprintln(b)
	fmt.Fprintf(b, "Problem Type: %s\n", capitalize(string(c.ProblemType)))
	fmt.Fprintf(b, "Models Compared: %d\n\n", len(c.entries))

	fmt.Fprintln(b, ruleLight)
	fmt.Fprintln(b, "RANKING")
	fmt.Fprintln(b, ruleLight)
	fmt.Fprintln(b)

	metrics := c.MetricNames()
	tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "rank\tname\t%s\t\n", strings.Join(metrics, "\t"))
	for _, e := range c.Table() {
		fmt.Fprintf(tw, "%d\t%s\t", e.Rank, e.Name)
		for _, m := range metrics {
			fmt.Fprintf(tw, "%.6f\t", e.Metrics[m])
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
	fmt.Fprintln(b)

	if best, ok := c.Best(); ok {
		fmt.Fprintln(b, ruleLight)
		fmt.Fprintln(b, "BEST MODEL")
		fmt.Fprintln(b, ruleLight)
		fmt.Fprintln(b)
		fmt.Fprintf(b, "Best Model: %s\n", best.Name)
		if c.classification() {
			fmt.Fprintf(b, "Accuracy: %.4f\n", best.Metrics["accuracy"])
			if auc := best.Metrics["roc_auc"]; auc > 0 {
				fmt.Fprintf(b, "ROC AUC: %.4f\n", auc)
			}
		} else {
			fmt.Fprintf(b, "R² Score: %.4f\n", best.Metrics["r2"])
			fmt.Fprintf(b, "RMSE: %.4f\n", best.Metrics["rmse"])
		}
		fmt.Fprintln(b)
	}
	fmt.Fprintln(b, ruleHeavy)
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
