// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"errors"

	"github.com/opst/mlengine/pkg/domain"
	kdb "github.com/opst/mlengine/pkg/domain/dataset/db"
	kdbmock "github.com/opst/mlengine/pkg/domain/internal/db/mock"
)

type DatasetInterface struct {
	Impl struct {
		Register         func(context.Context, domain.DatasetSpec) (*domain.Dataset, error)
		Get              func(ctx context.Context, id string) (*domain.Dataset, error)
		Find             func(ctx context.Context, workspaceId *string) ([]domain.Dataset, error)
		Update           func(ctx context.Context, id string, name string, description string) (*domain.Dataset, error)
		SetStatus        func(ctx context.Context, id string, status domain.DatasetStatus) error
		SetStats         func(ctx context.Context, id string, stats domain.DatasetStats) error
		SetQualityScore  func(ctx context.Context, id string, score float64) error
		Delete           func(ctx context.Context, id string) error
		FindMissingStats func(context.Context) ([]domain.Dataset, error)
		All              func(context.Context) ([]domain.Dataset, error)
		Columns          func(context.Context) ([]string, error)
	}
	Calls struct {
		Register         kdbmock.CallLog[domain.DatasetSpec]
		Get              kdbmock.CallLog[string]
		Find             kdbmock.CallLog[*string]
		Update           kdbmock.CallLog[UpdateArgs]
		SetStatus        kdbmock.CallLog[SetStatusArgs]
		SetStats         kdbmock.CallLog[SetStatsArgs]
		SetQualityScore  kdbmock.CallLog[SetQualityScoreArgs]
		Delete           kdbmock.CallLog[string]
		FindMissingStats kdbmock.CallLog[struct{}]
		All              kdbmock.CallLog[struct{}]
		Columns          kdbmock.CallLog[struct{}]
	}
}

type UpdateArgs struct {
	Id          string
	Name        string
	Description string
}

type SetStatusArgs struct {
	Id     string
	Status domain.DatasetStatus
}

type SetStatsArgs struct {
	Id    string
	Stats domain.DatasetStats
}

type SetQualityScoreArgs struct {
	Id    string
	Score float64
}

var _ kdb.DatasetInterface = &DatasetInterface{}

func NewDatasetInterface() *DatasetInterface {
	return &DatasetInterface{}
}

func (m *DatasetInterface) Register(ctx context.Context, spec domain.DatasetSpec) (*domain.Dataset, error) {
	m.Calls.Register = append(m.Calls.Register, spec)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, spec)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) Get(ctx context.Context, id string) (*domain.Dataset, error) {
	m.Calls.Get = append(m.Calls.Get, id)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) Find(ctx context.Context, workspaceId *string) ([]domain.Dataset, error) {
	m.Calls.Find = append(m.Calls.Find, workspaceId)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, workspaceId)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) Update(ctx context.Context, id string, name string, description string) (*domain.Dataset, error) {
	m.Calls.Update = append(m.Calls.Update, UpdateArgs{Id: id, Name: name, Description: description})
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, id, name, description)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) SetStatus(ctx context.Context, id string, status domain.DatasetStatus) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, SetStatusArgs{Id: id, Status: status})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, id, status)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) SetStats(ctx context.Context, id string, stats domain.DatasetStats) error {
	m.Calls.SetStats = append(m.Calls.SetStats, SetStatsArgs{Id: id, Stats: stats})
	if m.Impl.SetStats != nil {
		return m.Impl.SetStats(ctx, id, stats)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) SetQualityScore(ctx context.Context, id string, score float64) error {
	m.Calls.SetQualityScore = append(m.Calls.SetQualityScore, SetQualityScoreArgs{Id: id, Score: score})
	if m.Impl.SetQualityScore != nil {
		return m.Impl.SetQualityScore(ctx, id, score)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) Delete(ctx context.Context, id string) error {
	m.Calls.Delete = append(m.Calls.Delete, id)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) FindMissingStats(ctx context.Context) ([]domain.Dataset, error) {
	m.Calls.FindMissingStats = append(m.Calls.FindMissingStats, struct{}{})
	if m.Impl.FindMissingStats != nil {
		return m.Impl.FindMissingStats(ctx)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) All(ctx context.Context) ([]domain.Dataset, error) {
	m.Calls.All = append(m.Calls.All, struct{}{})
	if m.Impl.All != nil {
		return m.Impl.All(ctx)
	}

	panic(errors.New("should not be called"))
}

func (m *DatasetInterface) Columns(ctx context.Context) ([]string, error) {
	m.Calls.Columns = append(m.Calls.Columns, struct{}{})
	if m.Impl.Columns != nil {
		return m.Impl.Columns(ctx)
	}

	panic(errors.New("should not be called"))
}
