package automl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

// WriteReport writes comparison_table.csv and comparison_report.txt into dir,
// ranking cross-validation results of the selection.
func (sel Selection) WriteReport(dir string, pt ProblemType) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xe.Wrap(err)
	}

	rows := make([][]any, 0, len(sel.AllResults))
	for i, r := range sel.AllResults {
		rows = append(rows, []any{int64(i + 1), r.Algorithm, r.Name, r.MeanScore, r.StdScore, r.TrainingTime})
	}
	f, err := frame.FromRows(
		[]string{"rank", "algorithm", "name", "mean_score", "std_score", "training_time"}, rows,
	)
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

	return xe.Wrap(os.WriteFile(filepath.Join(dir, "comparison_report.txt"), []byte(sel.Report(pt)), 0o644))
}

// Report renders the selection as text.
func (sel Selection) Report(pt ProblemType) string {
	b := new(strings.Builder)
	fmt.Fprintln(b, ruleHeavy)
	fmt.Fprintln(b, "AUTOML SELECTION REPORT")
	fmt.Fprintln(b, ruleHeavy)
	fmt.Fprintln(b)
	fmt.Fprintf(b, "Problem Type: %s\n", capitalize(string(pt)))
	fmt.Fprintf(b, "Scoring: %s\n", pt.Scoring())
	fmt.Fprintf(b, "Models Compared: %d\n", len(sel.AllResults))
	fmt.Fprintf(b, "Total Time: %.2fs\n\n", sel.TotalTime)

	fmt.Fprintln(b, ruleLight)
	fmt.Fprintln(b, "RANKING")
	fmt.Fprintln(b, ruleLight)
	fmt.Fprintln(b)

	tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tname\tmean_score\tstd_score\ttraining_time\t")
	for i, r := range sel.AllResults {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%.2f\t\n", i+1, r.Name, r.MeanScore, r.StdScore, r.TrainingTime)
	}
	tw.Flush()
	fmt.Fprintln(b)

	if sel.BestScore != nil {
		fmt.Fprintln(b, ruleLight)
		fmt.Fprintln(b, "BEST MODEL")
		fmt.Fprintln(b, ruleLight)
		fmt.Fprintln(b)
		fmt.Fprintf(b, "Best Model: %s\n", sel.BestAlgorithmName)
		fmt.Fprintf(b, "%s: %.4f\n", pt.Scoring(), *sel.BestScore)
		fmt.Fprintln(b)
	}
	fmt.Fprintln(b, ruleHeavy)
	return b.String()
}
