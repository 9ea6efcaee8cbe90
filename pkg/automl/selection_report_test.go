package automl_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opst/mlengine/pkg/automl"
)

func TestSelectionWriteReport(t *testing.T) {
	best := 0.91
	sel := automl.Selection{
		BestAlgorithm:     "random_forest",
		BestAlgorithmName: "Random Forest",
		BestScore:         &best,
		AllResults: []automl.Result{
			{Algorithm: "random_forest", Name: "Random Forest", MeanScore: 0.91, StdScore: 0.01, TrainingTime: 2.5},
			{Algorithm: "logistic", Name: "Logistic Regression", MeanScore: 0.85, StdScore: 0.02, TrainingTime: 0.5},
		},
		TotalTime: 3,
	}

	dir := filepath.Join(t.TempDir(), "job-1")
	if err := sel.WriteReport(dir, automl.Classification); err != nil {
		t.Fatal(err)
	}

	table, err := os.ReadFile(filepath.Join(dir, "comparison_table.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	if lines[0] != "rank,algorithm,name,mean_score,std_score,training_time" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 ||
		!strings.HasPrefix(lines[1], "1,random_forest,Random Forest,0.91,") ||
		!strings.HasPrefix(lines[2], "2,logistic,Logistic Regression,0.85,") {
		t.Errorf("table:\n%s", table)
	}

	report, err := os.ReadFile(filepath.Join(dir, "comparison_report.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"AUTOML SELECTION REPORT",
		"Problem Type: Classification",
		"Models Compared: 2",
		"Best Model: Random Forest",
		"accuracy: 0.9100",
	} {
		if !strings.Contains(string(report), want) {
			t.Errorf("report does not contain %q:\n%s", want, report)
		}
	}
}
