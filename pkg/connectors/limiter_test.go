package connectors

import (
	"errors"
	"testing"
)

func TestLimiters(t *testing.T) {
	for name, testcase := range map[string]struct {
		limit limiter
		query string
		want  string
	}{
		"LIMIT is appended": {
			limit: limitClause, query: "SELECT * FROM t",
			want: "SELECT * FROM t LIMIT 10",
		},
		"LIMIT is kept when the query has it": {
			limit: limitClause, query: "select * from t limit 3",
			want: "select * from t limit 3",
		},
		"LIMIT is kept when the query has TOP": {
			limit: limitClause, query: "SELECT TOP 3 * FROM t",
			want: "SELECT TOP 3 * FROM t",
		},
		"warehouses check only LIMIT": {
			limit: limitOnlyClause, query: "SELECT top_score FROM t",
			want: "SELECT top_score FROM t LIMIT 10",
		},
		"TOP wraps the query": {
			limit: topClause, query: "SELECT a FROM t",
			want: "SELECT TOP 10 * FROM (SELECT a FROM t) AS preview",
		},
		"FETCH FIRST is appended": {
			limit: fetchFirstClause, query: "SELECT a FROM t",
			want: "SELECT a FROM t FETCH FIRST 10 ROWS ONLY",
		},
		"FETCH FIRST is kept with ROWNUM": {
			limit: fetchFirstClause, query: "SELECT a FROM t WHERE ROWNUM <= 5",
			want: "SELECT a FROM t WHERE ROWNUM <= 5",
		},
		"SAMPLE is appended": {
			limit: sampleClause, query: "SELECT a FROM t",
			want: "SELECT a FROM t SAMPLE 10",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.limit(testcase.query, 10); got != testcase.want {
				t.Errorf("got %q, want %q", got, testcase.want)
			}
		})
	}
}

func TestParams(t *testing.T) {
	params := map[string]any{"port": 5433.0, "s": "x", "b": "true", "n": "12", "bad": "x1"}

	if got := paramString(params, "port", ""); got != "5433" {
		t.Errorf("paramString(port) = %q", got)
	}
	if got := paramString(params, "missing", "d"); got != "d" {
		t.Errorf("paramString(missing) = %q", got)
	}
	if got, err := paramInt(params, "port", 0); err != nil || got != 5433 {
		t.Errorf("paramInt(port) = %d, %v", got, err)
	}
	if got, err := paramInt(params, "n", 0); err != nil || got != 12 {
		t.Errorf("paramInt(n) = %d, %v", got, err)
	}
	if _, err := paramInt(params, "bad", 0); err == nil {
		t.Error("paramInt(bad): no error")
	}
	if !paramBool(params, "b", false) {
		t.Error("paramBool(b) = false")
	}
	if paramBool(params, "s", false) {
		t.Error("paramBool(s) = true")
	}
}

func TestQualified(t *testing.T) {
	for name, testcase := range map[string]struct {
		dialect dialect
		table   string
		want    string
	}{
		"postgres quotes with double quotes": {dialect: postgresDialect, table: "public.loans", want: `"public"."loans"`},
		"mysql quotes with back quotes":      {dialect: mysqlDialect, table: "loans", want: "`loans`"},
		"sql server quotes with brackets":    {dialect: mssqlDialect, table: "dbo.loans", want: "[dbo].[loans]"},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := testcase.dialect.qualified(testcase.table)
			if err != nil {
				t.Fatal(err)
			}
			if got != testcase.want {
				t.Errorf("got %s, want %s", got, testcase.want)
			}
		})
	}

	if _, err := postgresDialect.qualified(`loans"; --`); !errors.Is(err, ErrInvalidTableName) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTableLimits(t *testing.T) {
	for name, testcase := range map[string]struct {
		dialect dialect
		want    string
	}{
		"oracle fetches first rows":  {dialect: oracleDialect, want: `SELECT * FROM "t" FETCH FIRST 5 ROWS ONLY`},
		"sql server takes top rows":  {dialect: mssqlDialect, want: "SELECT TOP 5 * FROM (SELECT * FROM [t]) AS preview"},
		"teradata samples rows":      {dialect: teradataDialect, want: `SELECT * FROM "t" SAMPLE 5`},
		"snowflake limits the query": {dialect: snowflakeDialect, want: `SELECT * FROM "t" LIMIT 5`},
	} {
		t.Run(name, func(t *testing.T) {
			q, err := testcase.dialect.qualified("t")
			if err != nil {
				t.Fatal(err)
			}
			if got := testcase.dialect.limit("SELECT * FROM "+q, 5); got != testcase.want {
				t.Errorf("got %s, want %s", got, testcase.want)
			}
		})
	}
}
