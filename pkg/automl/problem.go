package automl

import (
	"errors"
	"fmt"
	"strings"
)

type ProblemType string

const (
	Classification   ProblemType = "classification"
	Regression       ProblemType = "regression"
	TimeSeries       ProblemType = "time_series"
	Clustering       ProblemType = "clustering"
	AnomalyDetection ProblemType = "anomaly_detection"
)

var ErrUnknownProblemType = errors.New("unknown problem type")

// ParseProblemType reads a problem type case-insensitively.
func ParseProblemType(s string) (ProblemType, error) {
	pt := ProblemType(strings.ToLower(strings.TrimSpace(s)))
	switch pt {
	case Classification, Regression, TimeSeries, Clustering, AnomalyDetection:
		return pt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProblemType, s)
}

func (pt ProblemType) String() string {
	return string(pt)
}

// Scoring is the cross validation scoring used for the problem type.
func (pt ProblemType) Scoring() string {
	if pt == Classification {
		return "accuracy"
	}
	return "r2"
}

// MetricName is the human readable name of Scoring.
func (pt ProblemType) MetricName() string {
	if pt == Classification {
		return "Accuracy"
	}
	return "R²"
}
