package automl

import (
	"fmt"
	"maps"
	"slices"
)

// Algorithm is an estimator the engine knows how to build.
type Algorithm struct {
	// Key identifies the algorithm, like "random_forest".
	Key string `json:"key"`

	// Name is for display.
	Name string `json:"name"`

	// Class is the estimator class name on the engine side.
	Class string `json:"class"`

	// Params are constructor parameters.
	Params map[string]any `json:"params"`

	// Priority orders algorithms. Lower goes first.
	Priority int `json:"priority"`
}

const randomState = 42

var classification = []Algorithm{
	{
		Key: "logistic", Name: "Logistic Regression", Class: "LogisticRegression",
		Params:   map[string]any{"max_iter": 1000, "random_state": randomState},
		Priority: 1,
	},
	{
		Key: "random_forest", Name: "Random Forest", Class: "RandomForestClassifier",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState, "n_jobs": -1},
		Priority: 2,
	},
	{
		Key: "xgboost", Name: "XGBoost", Class: "XGBClassifier",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState, "n_jobs": -1, "eval_metric": "logloss"},
		Priority: 3,
	},
	{
		Key: "gradient_boosting", Name: "Gradient Boosting", Class: "GradientBoostingClassifier",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState},
		Priority: 4,
	},
	{
		Key: "svm", Name: "Support Vector Machine", Class: "SVC",
		Params:   map[string]any{"random_state": randomState, "probability": true},
		Priority: 5,
	},
}

var regression = []Algorithm{
	{
		Key: "linear", Name: "Linear Regression", Class: "LinearRegression",
		Params:   map[string]any{},
		Priority: 1,
	},
	{
		Key: "ridge", Name: "Ridge Regression", Class: "Ridge",
		Params:   map[string]any{"random_state": randomState},
		Priority: 2,
	},
	{
		Key: "random_forest_reg", Name: "Random Forest Regressor", Class: "RandomForestRegressor",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState, "n_jobs": -1},
		Priority: 3,
	},
	{
		Key: "xgboost_reg", Name: "XGBoost Regressor", Class: "XGBRegressor",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState, "n_jobs": -1},
		Priority: 4,
	},
	{
		Key: "gradient_boosting_reg", Name: "Gradient Boosting Regressor", Class: "GradientBoostingRegressor",
		Params:   map[string]any{"n_estimators": 100, "random_state": randomState},
		Priority: 5,
	},
}

// Algorithms lists algorithms for the problem type in priority order.
//
// Time series problems are treated as regression.
// Clustering and anomaly detection have no algorithms to select from,
// and ErrUnknownProblemType is returned for them.
func Algorithms(pt ProblemType) ([]Algorithm, error) {
	var src []Algorithm
	switch pt {
	case Classification:
		src = classification
	case Regression, TimeSeries:
		src = regression
	default:
		return nil, fmt.Errorf("%w: no algorithms for %q", ErrUnknownProblemType, pt)
	}

	algos := make([]Algorithm, len(src))
	for i, a := range src {
		a.Params = maps.Clone(a.Params)
		algos[i] = a
	}
	slices.SortStableFunc(algos, func(a, b Algorithm) int { return a.Priority - b.Priority })
	return algos, nil
}

// Lookup finds an algorithm by key.
func Lookup(pt ProblemType, key string) (Algorithm, bool) {
	algos, err := Algorithms(pt)
	if err != nil {
		return Algorithm{}, false
	}
	for _, a := range algos {
		if a.Key == key {
			return a, true
		}
	}
	return Algorithm{}, false
}
