// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"errors"

	"github.com/opst/mlengine/pkg/domain"
	kdb "github.com/opst/mlengine/pkg/domain/datasource/db"
	kdbmock "github.com/opst/mlengine/pkg/domain/internal/db/mock"
)

type UpdateArgs struct {
	Id   string
	Spec domain.DataSourceSpec
}

type SetTestResultArgs struct {
	Id     string
	Result domain.ConnectionTest
}

type DataSourceInterface struct {
	Impl struct {
		Register      func(context.Context, domain.DataSourceSpec) (*domain.DataSource, error)
		Get           func(ctx context.Context, id string) (*domain.DataSource, error)
		Find          func(ctx context.Context, workspaceId *string) ([]domain.DataSource, error)
		Update        func(ctx context.Context, id string, spec domain.DataSourceSpec) (*domain.DataSource, error)
		Delete        func(ctx context.Context, id string) error
		SetTestResult func(ctx context.Context, id string, result domain.ConnectionTest) error
	}
	Calls struct {
		Register      kdbmock.CallLog[domain.DataSourceSpec]
		Get           kdbmock.CallLog[string]
		Find          kdbmock.CallLog[*string]
		Update        kdbmock.CallLog[UpdateArgs]
		Delete        kdbmock.CallLog[string]
		SetTestResult kdbmock.CallLog[SetTestResultArgs]
	}
}

var _ kdb.DataSourceInterface = &DataSourceInterface{}

func NewDataSourceInterface() *DataSourceInterface {
	return &DataSourceInterface{}
}

func (m *DataSourceInterface) Register(ctx context.Context, spec domain.DataSourceSpec) (*domain.DataSource, error) {
	m.Calls.Register = append(m.Calls.Register, spec)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, spec)
	}

	panic(errors.New("should not be called"))
}

func (m *DataSourceInterface) Get(ctx context.Context, id string) (*domain.DataSource, error) {
	m.Calls.Get = append(m.Calls.Get, id)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *DataSourceInterface) Find(ctx context.Context, workspaceId *string) ([]domain.DataSource, error) {
	m.Calls.Find = append(m.Calls.Find, workspaceId)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, workspaceId)
	}

	panic(errors.New("should not be called"))
}

func (m *DataSourceInterface) Update(ctx context.Context, id string, spec domain.DataSourceSpec) (*domain.DataSource, error) {
	m.Calls.Update = append(m.Calls.Update, UpdateArgs{Id: id, Spec: spec})
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, id, spec)
	}

	panic(errors.New("should not be called"))
}

func (m *DataSourceInterface) Delete(ctx context.Context, id string) error {
	m.Calls.Delete = append(m.Calls.Delete, id)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *DataSourceInterface) SetTestResult(ctx context.Context, id string, result domain.ConnectionTest) error {
	m.Calls.SetTestResult = append(m.Calls.SetTestResult, SetTestResultArgs{Id: id, Result: result})
	if m.Impl.SetTestResult != nil {
		return m.Impl.SetTestResult(ctx, id, result)
	}

	panic(errors.New("should not be called"))
}
