package server_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opst/mlengine/pkg/configs/server"
)

func mustPanic(t *testing.T, want string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("no panic. want %q", want)
		}
		msg := ""
		switch x := r.(type) {
		case string:
			msg = x
		case error:
			msg = x.Error()
		}
		if !strings.Contains(msg, want) {
			t.Errorf("unexpected panic: %v (want %q)", r, want)
		}
	}()
	f()
}

func TestUnmarshal(t *testing.T) {
	t.Run("it loads config from yaml: ", func(t *testing.T) {
		result, err := server.Unmarshal([]byte(`
server:
  port: 18080
  logLevel: DEBUG
  tls:
    cert: /etc/mlengine/tls.crt
    key: /etc/mlengine/tls.key
database:
  url: postgres://mlengine@db:5432/mlengine
storage:
  dataRoot: /data/uploads
  reportRoot: /data/reports
engine:
  url: http://engine:8000/api/
  timeout: 10s
  signingKey: s3cr3t
  rateLimit:
    rps: 2.5
    burst: 4
automl:
  mode: remote
  pollInterval: 2s
  maxPolls: 30
loops:
  automl: backlog
  datasetStats: forever:1h
  datasourceProbe: "cron:*/5 * * * *"
`))
		if err != nil {
			t.Fatal(err)
		}

		for name, testcase := range map[string]struct {
			actual   any
			expected any
		}{
			".server.port":            {result.Server().Port(), int32(18080)},
			".server.logLevel":        {result.Server().LogLevel(), "debug"},
			".server.tls.cert":        {result.Server().TLS().Cert(), "/etc/mlengine/tls.crt"},
			".server.tls.key":         {result.Server().TLS().Key(), "/etc/mlengine/tls.key"},
			".database.url":           {result.Database().URL(), "postgres://mlengine@db:5432/mlengine"},
			".storage.dataRoot":       {result.Storage().DataRoot(), "/data/uploads"},
			".storage.reportRoot":     {result.Storage().ReportRoot(), "/data/reports"},
			".engine.url":             {result.Engine().URL(), "http://engine:8000/api"},
			".engine.timeout":         {result.Engine().Timeout(), 10 * time.Second},
			".engine.signingKey":      {string(result.Engine().SigningKey()), "s3cr3t"},
			".engine.rateLimit.rps":   {result.Engine().RateLimit().RPS(), 2.5},
			".engine.rateLimit.burst": {result.Engine().RateLimit().Burst(), 4},
			".automl.mode":            {result.AutoML().Mode(), server.Remote},
			".automl.pollInterval":    {result.AutoML().PollInterval(), 2 * time.Second},
			".automl.maxPolls":        {result.AutoML().MaxPolls(), 30},
			".loops.automl":           {result.Loops().AutoML(), "backlog"},
			".loops.datasetStats":     {result.Loops().DatasetStats(), "forever:1h"},
			".loops.datasourceProbe":  {result.Loops().DatasourceProbe(), "cron:*/5 * * * *"},
		} {
			t.Run(name, func(t *testing.T) {
				if testcase.actual != testcase.expected {
					t.Errorf("mismatch. (actual, expected) = (%v, %v)", testcase.actual, testcase.expected)
				}
			})
		}
	})

	t.Run("it fills defaults: ", func(t *testing.T) {
		result, err := server.Unmarshal([]byte(`
database:
  url: postgres://db/mlengine
storage:
  dataRoot: /data
engine:
  url: http://engine:8000/api
`))
		if err != nil {
			t.Fatal(err)
		}

		for name, testcase := range map[string]struct {
			actual   any
			expected any
		}{
			".server.port":           {result.Server().Port(), int32(8080)},
			".server.logLevel":       {result.Server().LogLevel(), "info"},
			".server.tls":            {result.Server().TLS() == nil, true},
			".storage.reportRoot":    {result.Storage().ReportRoot(), filepath.Join("/data", "reports")},
			".engine.timeout":        {result.Engine().Timeout(), 30 * time.Second},
			".engine.signingKey":     {len(result.Engine().SigningKey()), 0},
			".engine.rateLimit":      {result.Engine().RateLimit() == nil, true},
			".automl.mode":           {result.AutoML().Mode(), server.Local},
			".automl.pollInterval":   {result.AutoML().PollInterval(), 5 * time.Second},
			".automl.maxPolls":       {result.AutoML().MaxPolls(), 720},
			".loops.automl":          {result.Loops().AutoML(), "forever:5s"},
			".loops.datasetStats":    {result.Loops().DatasetStats(), "forever:10m"},
			".loops.datasourceProbe": {result.Loops().DatasourceProbe(), "forever:15m"},
		} {
			t.Run(name, func(t *testing.T) {
				if testcase.actual != testcase.expected {
					t.Errorf("mismatch. (actual, expected) = (%v, %v)", testcase.actual, testcase.expected)
				}
			})
		}
	})

	t.Run("it reads signing key from file", func(t *testing.T) {
		keyfile := filepath.Join(t.TempDir(), "key")
		if err := os.WriteFile(keyfile, []byte("from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}
		result, err := server.Unmarshal([]byte(`
database:
  url: postgres://db/mlengine
storage:
  dataRoot: /data
engine:
  url: http://engine:8000/api
  signingKeyFile: ` + keyfile + `
`))
		if err != nil {
			t.Fatal(err)
		}
		if got := string(result.Engine().SigningKey()); got != "from-file" {
			t.Errorf("signing key: %q", got)
		}
	})

	for name, testcase := range map[string]struct {
		yaml string
		want string
	}{
		"when database is missing, it panics": {
			yaml: `
storage: {dataRoot: /data}
engine: {url: "http://engine/api"}
`,
			want: "(root).database is required",
		},
		"when engine.url is empty, it panics": {
			yaml: `
database: {url: "postgres://db"}
storage: {dataRoot: /data}
engine: {timeout: 1s}
`,
			want: "(root).engine.url is required",
		},
		"when automl.mode is unknown, it panics": {
			yaml: `
database: {url: "postgres://db"}
storage: {dataRoot: /data}
engine: {url: "http://engine/api"}
automl: {mode: hybrid}
`,
			want: "(root).automl.mode",
		},
		"when both of signingKey and signingKeyFile are set, it panics": {
			yaml: `
database: {url: "postgres://db"}
storage: {dataRoot: /data}
engine: {url: "http://engine/api", signingKey: a, signingKeyFile: /b}
`,
			want: "are exclusive",
		},
		"when logLevel is unknown, it panics": {
			yaml: `
server: {logLevel: verbose}
database: {url: "postgres://db"}
storage: {dataRoot: /data}
engine: {url: "http://engine/api"}
`,
			want: "(root).server.logLevel is unknown",
		},
		"when document is empty, it panics": {
			yaml: ``,
			want: "(root) is required",
		},
	} {
		t.Run(name, func(t *testing.T) {
			mustPanic(t, testcase.want, func() {
				server.Unmarshal([]byte(testcase.yaml))
			})
		})
	}
}
