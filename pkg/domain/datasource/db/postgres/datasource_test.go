package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/opst/mlengine/pkg/conn/db/postgres/pool/testenv"
	"github.com/opst/mlengine/pkg/domain"
	kpgdatasource "github.com/opst/mlengine/pkg/domain/datasource/db/postgres"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
	"github.com/opst/mlengine/pkg/utils/pointer"
	"github.com/opst/mlengine/pkg/utils/try"
)

var ignoreGenerated = cmpopts.IgnoreFields(domain.DataSource{}, "Id", "CreatedAt", "UpdatedAt")

func TestDataSource(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	spec := domain.DataSourceSpec{
		Name:        "warehouse",
		Description: "sales db",
		SourceType:  "postgresql",
		Params: map[string]any{
			"host": "db.example.com", "port": float64(5432), "database": "sales",
			"user": "reader", "password": "secret",
		},
		QueryOrPath: "select * from orders",
		SampleSize:  1000,
		WorkspaceId: "ws-1",
	}

	t.Run("Register creates a DISCONNECTED data source which can be got", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		registered := try.To(testee.Register(ctx, spec)).OrFatal(t)
		want := domain.DataSource{DataSourceSpec: spec, Status: domain.DataSourceDisconnected}
		if diff := cmp.Diff(want, *registered, ignoreGenerated); diff != "" {
			t.Errorf("registered (-want +got):\n%s", diff)
		}

		got := try.To(testee.Get(ctx, registered.Id)).OrFatal(t)
		if diff := cmp.Diff(*registered, *got); diff != "" {
			t.Errorf("got (-registered +got):\n%s", diff)
		}
	})

	t.Run("Register stores nil params as an empty object", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		registered := try.To(testee.Register(ctx, domain.DataSourceSpec{
			Name: "local", SourceType: "csv", QueryOrPath: "/data/iris.csv",
		})).OrFatal(t)
		if registered.Params == nil || len(registered.Params) != 0 {
			t.Errorf("params: %#v", registered.Params)
		}
	})

	t.Run("Find lists data sources filtered by workspace", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		first := try.To(testee.Register(ctx, spec)).OrFatal(t)
		other := spec
		other.WorkspaceId = "ws-2"
		second := try.To(testee.Register(ctx, other)).OrFatal(t)

		ids := func(ds []domain.DataSource) []string {
			ret := []string{}
			for _, d := range ds {
				ret = append(ret, d.Id)
			}
			return ret
		}

		all := try.To(testee.Find(ctx, nil)).OrFatal(t)
		if diff := cmp.Diff([]string{first.Id, second.Id}, ids(all), cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
			t.Errorf("all (-want +got):\n%s", diff)
		}
		ws2 := try.To(testee.Find(ctx, pointer.Ref("ws-2"))).OrFatal(t)
		if diff := cmp.Diff([]string{second.Id}, ids(ws2)); diff != "" {
			t.Errorf("ws-2 (-want +got):\n%s", diff)
		}
	})

	t.Run("Update replaces the spec and keeps the test result", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		registered := try.To(testee.Register(ctx, spec)).OrFatal(t)
		testedAt := try.To(time.Parse(time.RFC3339, "2024-05-01T10:00:00+00:00")).OrFatal(t)
		if err := testee.SetTestResult(ctx, registered.Id, domain.ConnectionTest{
			Status: domain.DataSourceConnected, TestedAt: testedAt,
		}); err != nil {
			t.Fatal(err)
		}

		newSpec := domain.DataSourceSpec{
			Name:        "warehouse v2",
			SourceType:  "mysql",
			Params:      map[string]any{"host": "mysql.example.com"},
			QueryOrPath: "select 1",
		}
		updated := try.To(testee.Update(ctx, registered.Id, newSpec)).OrFatal(t)
		if diff := cmp.Diff(newSpec, updated.DataSourceSpec); diff != "" {
			t.Errorf("spec (-want +got):\n%s", diff)
		}
		if updated.Status != domain.DataSourceConnected {
			t.Errorf("status: %s", updated.Status)
		}
		if updated.LastTestedAt == nil || !updated.LastTestedAt.Equal(testedAt) {
			t.Errorf("last tested at: %v", updated.LastTestedAt)
		}

		if _, err := testee.Update(ctx, "no-such-source", newSpec); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("unknown: %v", err)
		}
	})

	t.Run("SetTestResult records errors and clears them on success", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		registered := try.To(testee.Register(ctx, spec)).OrFatal(t)
		at := try.To(time.Parse(time.RFC3339, "2024-05-01T10:00:00+00:00")).OrFatal(t)

		if err := testee.SetTestResult(ctx, registered.Id, domain.ConnectionTest{
			Status: domain.DataSourceError, ErrorMessage: "connection refused", TestedAt: at,
		}); err != nil {
			t.Fatal(err)
		}
		failed := try.To(testee.Get(ctx, registered.Id)).OrFatal(t)
		if failed.Status != domain.DataSourceError || failed.ErrorMessage != "connection refused" {
			t.Errorf("failed: %s %q", failed.Status, failed.ErrorMessage)
		}

		if err := testee.SetTestResult(ctx, registered.Id, domain.ConnectionTest{
			Status: domain.DataSourceConnected, TestedAt: at.Add(time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
		ok := try.To(testee.Get(ctx, registered.Id)).OrFatal(t)
		if ok.Status != domain.DataSourceConnected || ok.ErrorMessage != "" {
			t.Errorf("ok: %s %q", ok.Status, ok.ErrorMessage)
		}
		if ok.LastTestedAt == nil || !ok.LastTestedAt.Equal(at.Add(time.Hour)) {
			t.Errorf("last tested at: %v", ok.LastTestedAt)
		}

		if err := testee.SetTestResult(ctx, "no-such-source", domain.ConnectionTest{}); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("unknown: %v", err)
		}
	})

	t.Run("Delete removes a data source", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgdatasource.New(pool)

		registered := try.To(testee.Register(ctx, spec)).OrFatal(t)
		if err := testee.Delete(ctx, registered.Id); err != nil {
			t.Fatal(err)
		}
		if _, err := testee.Get(ctx, registered.Id); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("get after delete: %v", err)
		}
		if err := testee.Delete(ctx, registered.Id); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("delete twice: %v", err)
		}
	})
}
