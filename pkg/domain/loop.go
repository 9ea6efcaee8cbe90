package domain

import (
	"errors"
	"fmt"
)

type LoopType string

const (
	// AutoML picks queued automl jobs and runs them.
	AutoML LoopType = "automl"

	// DatasetStatsLoop fills row and column counts of datasets missing them.
	DatasetStatsLoop LoopType = "dataset_stats"

	// DataSourceProbe tests connections of data sources.
	DataSourceProbe LoopType = "datasource_probe"
)

func (lt LoopType) String() string {
	return string(lt)
}

func (lt LoopType) IsKnown() bool {
	switch lt {
	case AutoML, DatasetStatsLoop, DataSourceProbe:
		return true
	default:
		return false
	}
}

func AsLoopType(s string) (LoopType, error) {
	l := LoopType(s)
	if l.IsKnown() {
		return l, nil
	}
	return l, fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}

var ErrUnknownLoopType = errors.New("unknown loop type")
