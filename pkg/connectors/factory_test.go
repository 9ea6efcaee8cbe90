package connectors_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlengine/pkg/connectors"
)

func TestLookup(t *testing.T) {
	for tag, want := range map[string]string{
		"csv":                  "csv",
		"local_file":           "local_file",
		"MySQL":                "mysql",
		"postgres":             "postgresql",
		"postgresql":           "postgresql",
		"sqlserver":            "mssql",
		"oracle":               "oracle",
		"db2":                  "db2",
		"sqlite":               "sqlite",
		"aws_s3":               "s3",
		"google_cloud_storage": "gcs",
		"azure":                "azure_blob",
		"bigquery":             "bigquery",
		"snowflake":            "snowflake",
		"aws_redshift":         "redshift",
		"databricks":           "databricks",
		" Teradata ":           "teradata",
	} {
		t.Run(tag, func(t *testing.T) {
			k, err := connectors.Lookup(tag)
			if err != nil {
				t.Fatal(err)
			}
			if k.ID != want {
				t.Errorf("kind = %s, want %s", k.ID, want)
			}
		})
	}

	t.Run("unsupported tag lists supported ones", func(t *testing.T) {
		_, err := connectors.Lookup("excel")
		if !errors.Is(err, connectors.ErrUnsupportedSource) {
			t.Fatalf("error = %v, want ErrUnsupportedSource", err)
		}
		for _, tag := range []string{"csv", "postgres", "aws_s3", "teradata"} {
			if !strings.Contains(err.Error(), tag) {
				t.Errorf("message does not mention %s: %s", tag, err)
			}
		}
	})
}

func TestSupportedSources(t *testing.T) {
	got := map[string][]string{}
	for cat, ks := range connectors.SupportedSources() {
		for _, k := range ks {
			got[cat] = append(got[cat], k.ID)
		}
	}
	want := map[string][]string{
		"files":           {"csv", "local_file"},
		"databases":       {"db2", "mssql", "mysql", "oracle", "postgresql", "sqlite"},
		"cloud_storage":   {"azure_blob", "gcs", "s3"},
		"data_warehouses": {"bigquery", "databricks", "redshift", "snowflake", "teradata"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}

	types := connectors.SupportedTypes()
	if !slices.IsSorted(types) {
		t.Errorf("types are not sorted: %v", types)
	}
	if len(types) != 22 {
		t.Errorf("len(types) = %d, want 22: %v", len(types), types)
	}
}

func TestParamsSchema(t *testing.T) {
	k, err := connectors.Lookup("postgres")
	if err != nil {
		t.Fatal(err)
	}
	got := k.ParamsSchema()
	if diff := cmp.Diff([]string{"host", "database", "username", "password"}, got.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	if got.Optional["port"] != 5432 {
		t.Errorf("default port = %v, want 5432", got.Optional["port"])
	}

	got.Required[0] = "mutated"
	if k.ParamsSchema().Required[0] != "host" {
		t.Error("schema shares its slice with the registry")
	}
}

func TestValidate(t *testing.T) {
	for name, testcase := range map[string]struct {
		config connectors.Config
		want   []string
	}{
		"valid database": {
			config: connectors.NewConfig("mysql", "SELECT * FROM t", map[string]any{
				"host": "db", "database": "d", "username": "u", "password": "p",
			}),
			want: []string{},
		},
		"missing params and query": {
			config: connectors.NewConfig("mysql", "", map[string]any{"host": "db", "password": ""}),
			want: []string{
				"Missing required parameter: database",
				"Missing required parameter: username",
				"Missing required parameter: password",
				"query_or_path is required",
			},
		},
		"csv needs only a path": {
			config: connectors.NewConfig("csv", "/data/a.csv", nil),
			want:   []string{},
		},
		"unsupported type": {
			config: connectors.NewConfig("excel", "a.xlsx", nil),
			want:   []string{"Unsupported source type: excel"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			got := connectors.Validate(testcase.config)
			if diff := cmp.Diff(testcase.want, got); diff != "" {
				t.Errorf("problems (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("azure needs a connection string or an account url", func(t *testing.T) {
		_, err := connectors.New(connectors.NewConfig("azure", "a.csv", map[string]any{"container": "c"}))
		if err == nil {
			t.Error("no error")
		}
	})

	t.Run("unsupported type is an error", func(t *testing.T) {
		if _, err := connectors.New(connectors.NewConfig("excel", "a.xlsx", nil)); !errors.Is(err, connectors.ErrUnsupportedSource) {
			t.Errorf("error = %v", err)
		}
	})
}
