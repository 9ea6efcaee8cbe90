// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"errors"

	"github.com/opst/mlengine/pkg/domain"
	kdb "github.com/opst/mlengine/pkg/domain/automl/db"
	kdbmock "github.com/opst/mlengine/pkg/domain/internal/db/mock"
)

type UpdateProgressArgs struct {
	Id       string
	Status   domain.AutoMLStatus
	Progress domain.AutoMLProgress
}

type SetEngineJobIdArgs struct {
	Id          string
	EngineJobId string
}

type FinishArgs struct {
	Id     string
	Result domain.AutoMLResult
}

type AutoMLInterface struct {
	Impl struct {
		Register       func(context.Context, domain.AutoMLSpec) (*domain.AutoMLJob, error)
		Get            func(ctx context.Context, id string) (*domain.AutoMLJob, error)
		Find           func(ctx context.Context, status []domain.AutoMLStatus) ([]domain.AutoMLJob, error)
		Delete         func(ctx context.Context, id string) error
		PickQueued     func(context.Context) (*domain.AutoMLJob, error)
		UpdateProgress func(ctx context.Context, id string, status domain.AutoMLStatus, progress domain.AutoMLProgress) error
		SetEngineJobId func(ctx context.Context, id string, engineJobId string) error
		Finish         func(ctx context.Context, id string, result domain.AutoMLResult) error
		Stop           func(ctx context.Context, id string) (*domain.AutoMLJob, error)
	}
	Calls struct {
		Register       kdbmock.CallLog[domain.AutoMLSpec]
		Get            kdbmock.CallLog[string]
		Find           kdbmock.CallLog[[]domain.AutoMLStatus]
		Delete         kdbmock.CallLog[string]
		PickQueued     kdbmock.CallLog[struct{}]
		UpdateProgress kdbmock.CallLog[UpdateProgressArgs]
		SetEngineJobId kdbmock.CallLog[SetEngineJobIdArgs]
		Finish         kdbmock.CallLog[FinishArgs]
		Stop           kdbmock.CallLog[string]
	}
}

var _ kdb.AutoMLInterface = &AutoMLInterface{}

func NewAutoMLInterface() *AutoMLInterface {
	return &AutoMLInterface{}
}

func (m *AutoMLInterface) Register(ctx context.Context, spec domain.AutoMLSpec) (*domain.AutoMLJob, error) {
	m.Calls.Register = append(m.Calls.Register, spec)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, spec)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) Get(ctx context.Context, id string) (*domain.AutoMLJob, error) {
	m.Calls.Get = append(m.Calls.Get, id)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) Find(ctx context.Context, status []domain.AutoMLStatus) ([]domain.AutoMLJob, error) {
	m.Calls.Find = append(m.Calls.Find, status)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, status)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) Delete(ctx context.Context, id string) error {
	m.Calls.Delete = append(m.Calls.Delete, id)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, id)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) PickQueued(ctx context.Context) (*domain.AutoMLJob, error) {
	m.Calls.PickQueued = append(m.Calls.PickQueued, struct{}{})
	if m.Impl.PickQueued != nil {
		return m.Impl.PickQueued(ctx)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) UpdateProgress(ctx context.Context, id string, status domain.AutoMLStatus, progress domain.AutoMLProgress) error {
	m.Calls.UpdateProgress = append(m.Calls.UpdateProgress, UpdateProgressArgs{Id: id, Status: status, Progress: progress})
	if m.Impl.UpdateProgress != nil {
		return m.Impl.UpdateProgress(ctx, id, status, progress)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) SetEngineJobId(ctx context.Context, id string, engineJobId string) error {
	m.Calls.SetEngineJobId = append(m.Calls.SetEngineJobId, SetEngineJobIdArgs{Id: id, EngineJobId: engineJobId})
	if m.Impl.SetEngineJobId != nil {
		return m.Impl.SetEngineJobId(ctx, id, engineJobId)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) Finish(ctx context.Context, id string, result domain.AutoMLResult) error {
	m.Calls.Finish = append(m.Calls.Finish, FinishArgs{Id: id, Result: result})
	if m.Impl.Finish != nil {
		return m.Impl.Finish(ctx, id, result)
	}

	panic(errors.New("should not be called"))
}

func (m *AutoMLInterface) Stop(ctx context.Context, id string) (*domain.AutoMLJob, error) {
	m.Calls.Stop = append(m.Calls.Stop, id)
	if m.Impl.Stop != nil {
		return m.Impl.Stop(ctx, id)
	}

	panic(errors.New("should not be called"))
}
