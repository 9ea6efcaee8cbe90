package explain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	xe "github.com/opst/mlengine/pkg/errors"
)

const rule = "======================================================================"

// Report renders the last explanation as text, with the top features.
func (e *Explainer) Report() (string, error) {
	imp, err := e.GlobalImportance()
	if err != nil {
		return "", err
	}

	b := new(strings.Builder)
	fmt.Fprintln(b, rule)
	fmt.Fprintln(b, "SHAP EXPLANATION REPORT")
	fmt.Fprintln(b, rule)
	fmt.Fprintln(b)
	fmt.Fprintf(b, "Model Type: %s\n", e.Model.Type)
	fmt.Fprintf(b, "Problem Type: %s\n", e.Model.ProblemType)
	fmt.Fprintf(b, "Explainer: %s\n", e.kind)
	fmt.Fprintf(b, "Samples Explained: %d\n", len(e.explained))
	fmt.Fprintf(b, "Features: %d\n\n", len(e.FeatureNames))

	fmt.Fprintln(b, strings.Repeat("-", len(rule)))
	fmt.Fprintf(b, "TOP %d MOST IMPORTANT FEATURES\n", TopFeatures)
	fmt.Fprintln(b, strings.Repeat("-", len(rule)))
	fmt.Fprintln(b)
	for i, f := range imp[:min(TopFeatures, len(imp))] {
		fmt.Fprintf(b, "%d. %s: %.4f\n", i+1, f.Feature, f.Importance)
	}
	fmt.Fprintln(b)
	fmt.Fprintln(b, rule)
	return b.String(), nil
}

// WriteReport writes shap_report.txt into dir.
func (e *Explainer) WriteReport(dir string) error {
	text, err := e.Report()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xe.Wrap(err)
	}
	return xe.Wrap(os.WriteFile(filepath.Join(dir, "shap_report.txt"), []byte(text), 0o644))
}
