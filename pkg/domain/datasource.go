package domain

import (
	"fmt"
	"time"

	"github.com/opst/mlengine/pkg/connectors"
)

type DataSourceStatus string

const (
	DataSourceConnected    DataSourceStatus = "CONNECTED"
	DataSourceDisconnected DataSourceStatus = "DISCONNECTED"
	DataSourceError        DataSourceStatus = "ERROR"
	DataSourceTesting      DataSourceStatus = "TESTING"
)

func (s DataSourceStatus) String() string {
	return string(s)
}

func AsDataSourceStatus(s string) (DataSourceStatus, error) {
	switch st := DataSourceStatus(s); st {
	case DataSourceConnected, DataSourceDisconnected, DataSourceError, DataSourceTesting:
		return st, nil
	}
	return "", fmt.Errorf("unknown data source status: %q", s)
}

// DataSourceSpec is the user-editable part of a data source.
type DataSourceSpec struct {
	Name        string
	Description string
	SourceType  string
	Params      map[string]any
	QueryOrPath string
	SampleSize  int
	WorkspaceId string
}

// Config is the connector configuration of the data source.
func (s DataSourceSpec) Config() connectors.Config {
	cfg := connectors.NewConfig(s.SourceType, s.QueryOrPath, s.Params)
	cfg.SampleSize = s.SampleSize
	return cfg
}

type DataSource struct {
	Id string
	DataSourceSpec

	Status       DataSourceStatus
	LastTestedAt *time.Time
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConnectionTest is the outcome of testing a data source.
type ConnectionTest struct {
	Status       DataSourceStatus
	ErrorMessage string
	TestedAt     time.Time
}

// AsConnectionTest converts a connector test result into the status to be recorded.
func AsConnectionTest(r connectors.TestResult, at time.Time) ConnectionTest {
	if r.OK() {
		return ConnectionTest{Status: DataSourceConnected, TestedAt: at}
	}
	return ConnectionTest{Status: DataSourceError, ErrorMessage: r.Message, TestedAt: at}
}
