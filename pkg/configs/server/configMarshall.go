package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/server.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of mlengined.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `Config`.
type ConfigMarshall struct {
	Server   *ServerConfigMarshall   `yaml:"server,omitempty"`
	Database *DatabaseConfigMarshall `yaml:"database"`
	Storage  *StorageConfigMarshall  `yaml:"storage"`
	Engine   *EngineConfigMarshall   `yaml:"engine"`
	AutoML   *AutoMLConfigMarshall   `yaml:"automl,omitempty"`
	Loops    *LoopsConfigMarshall    `yaml:"loops,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	return &Config{
		server:   orEmpty(c.Server).trySeal(path + ".server"),
		database: nonnil(c.Database, path+".database").trySeal(path + ".database"),
		storage:  nonnil(c.Storage, path+".storage").trySeal(path + ".storage"),
		engine:   nonnil(c.Engine, path+".engine").trySeal(path + ".engine"),
		automl:   orEmpty(c.AutoML).trySeal(path + ".automl"),
		loops:    orEmpty(c.Loops).trySeal(path + ".loops"),
	}
}

type ServerConfigMarshall struct {
	Port     int32              `yaml:"port,omitempty"`
	LogLevel string             `yaml:"logLevel,omitempty"`
	TLS      *TLSConfigMarshall `yaml:"tls,omitempty"`
}

func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	port := s.Port
	if port == 0 {
		port = 8080
	}
	if port < 0 || 65535 < port {
		panic(fmt.Sprintf("%s.port is out of range: %d", path, port))
	}

	level := strings.ToLower(s.LogLevel)
	switch level {
	case "":
		level = "info"
	case "debug", "info", "warn", "error", "off":
	default:
		panic(fmt.Sprintf("%s.logLevel is unknown: %s", path, s.LogLevel))
	}

	var tls *TLSConfig
	if s.TLS != nil {
		tls = s.TLS.trySeal(path + ".tls")
	}

	return &ServerConfig{port: port, logLevel: level, tls: tls}
}

type TLSConfigMarshall struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

func (t *TLSConfigMarshall) trySeal(path string) *TLSConfig {
	return &TLSConfig{
		cert: required(t.Cert, path+".cert"),
		key:  required(t.Key, path+".key"),
	}
}

type DatabaseConfigMarshall struct {
	URL string `yaml:"url"`
}

func (d *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	return &DatabaseConfig{url: required(d.URL, path+".url")}
}

type StorageConfigMarshall struct {
	DataRoot   string `yaml:"dataRoot"`
	ReportRoot string `yaml:"reportRoot,omitempty"`
}

func (s *StorageConfigMarshall) trySeal(path string) *StorageConfig {
	dataRoot := required(s.DataRoot, path+".dataRoot")
	reportRoot := s.ReportRoot
	if reportRoot == "" {
		reportRoot = filepath.Join(dataRoot, "reports")
	}
	return &StorageConfig{dataRoot: dataRoot, reportRoot: reportRoot}
}

type EngineConfigMarshall struct {
	URL            string                   `yaml:"url"`
	Timeout        time.Duration            `yaml:"timeout,omitempty"`
	SigningKey     string                   `yaml:"signingKey,omitempty"`
	SigningKeyFile string                   `yaml:"signingKeyFile,omitempty"`
	RateLimit      *RateLimitConfigMarshall `yaml:"rateLimit,omitempty"`
}

func (e *EngineConfigMarshall) trySeal(path string) *EngineConfig {
	timeout := e.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if e.SigningKey != "" && e.SigningKeyFile != "" {
		panic(path + ".signingKey and " + path + ".signingKeyFile are exclusive")
	}
	key := []byte(e.SigningKey)
	if e.SigningKeyFile != "" {
		content, err := os.ReadFile(e.SigningKeyFile)
		if err != nil {
			panic(fmt.Errorf("%s.signingKeyFile can not be read: %w", path, err))
		}
		key = []byte(strings.TrimSpace(string(content)))
	}

	var rl *RateLimitConfig
	if e.RateLimit != nil {
		rl = e.RateLimit.trySeal(path + ".rateLimit")
	}

	return &EngineConfig{
		url:        strings.TrimSuffix(required(e.URL, path+".url"), "/"),
		timeout:    timeout,
		signingKey: key,
		rateLimit:  rl,
	}
}

type RateLimitConfigMarshall struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst,omitempty"`
}

func (r *RateLimitConfigMarshall) trySeal(path string) *RateLimitConfig {
	rps := required(r.RPS, path+".rps")
	if rps < 0 {
		panic(fmt.Sprintf("%s.rps should be positive: %v", path, rps))
	}
	burst := r.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitConfig{rps: rps, burst: burst}
}

type AutoMLConfigMarshall struct {
	Mode         string        `yaml:"mode,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	MaxPolls     int           `yaml:"maxPolls,omitempty"`
}

func (a *AutoMLConfigMarshall) trySeal(path string) *AutoMLConfig {
	mode := AutoMLMode(strings.ToLower(a.Mode))
	switch mode {
	case "":
		mode = Local
	case Local, Remote:
	default:
		panic(fmt.Sprintf("%s.mode should be %s or %s: %s", path, Local, Remote, a.Mode))
	}

	interval := a.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxPolls := a.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 720
	}
	return &AutoMLConfig{mode: mode, pollInterval: interval, maxPolls: maxPolls}
}

type LoopsConfigMarshall struct {
	AutoML          string `yaml:"automl,omitempty"`
	DatasetStats    string `yaml:"datasetStats,omitempty"`
	DatasourceProbe string `yaml:"datasourceProbe,omitempty"`
}

func (l *LoopsConfigMarshall) trySeal(string) *LoopsConfig {
	return &LoopsConfig{
		automl:          orDefault(l.AutoML, "forever:5s"),
		datasetStats:    orDefault(l.DatasetStats, "forever:10m"),
		datasourceProbe: orDefault(l.DatasourceProbe, "forever:15m"),
	}
}

func orEmpty[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func orDefault(v string, d string) string {
	if v == "" {
		return d
	}
	return v
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
