package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

type DatasetStatus string

const (
	DatasetUploading  DatasetStatus = "UPLOADING"
	DatasetProcessing DatasetStatus = "PROCESSING"
	DatasetActive     DatasetStatus = "ACTIVE"
	DatasetError      DatasetStatus = "ERROR"
	DatasetDeleted    DatasetStatus = "DELETED"
)

func (s DatasetStatus) String() string {
	return string(s)
}

func AsDatasetStatus(s string) (DatasetStatus, error) {
	switch st := DatasetStatus(s); st {
	case DatasetUploading, DatasetProcessing, DatasetActive, DatasetError, DatasetDeleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown dataset status: %q", s)
}

type Dataset struct {
	Id          string
	Name        string
	Description string

	// WorkspaceId is empty for datasets out of any workspace.
	WorkspaceId string

	FilePath string
	FileSize int64

	// counts are nil until computed.
	RowCount    *int64
	ColumnCount *int64

	Status DatasetStatus

	// QualityScore is nil until assessed.
	QualityScore *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

var storedPrefix = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_`)

// FileName is the name of the file as uploaded, without the prefix added when it was stored.
func (d Dataset) FileName() string {
	if d.FilePath == "" {
		return ""
	}
	return storedPrefix.ReplaceAllString(filepath.Base(d.FilePath), "")
}

// HasStats tells both of row and column counts are known and positive.
func (d Dataset) HasStats() bool {
	return d.RowCount != nil && 0 < *d.RowCount && d.ColumnCount != nil && 0 < *d.ColumnCount
}

// DatasetSpec is what is needed to register a dataset.
type DatasetSpec struct {
	Name        string
	Description string
	WorkspaceId string
	FilePath    string
	FileSize    int64
	Status      DatasetStatus
}

// DatasetStats are facts found by reading a dataset file.
type DatasetStats struct {
	RowCount    int64
	ColumnCount int64
}
