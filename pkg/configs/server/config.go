package server

import "time"

// Configuration of mlengined and its loops.
//
// To get `Config` instance, use `Unmarshal` or `LoadConfig`.
type Config struct {
	server   *ServerConfig
	database *DatabaseConfig
	storage  *StorageConfig
	engine   *EngineConfig
	automl   *AutoMLConfig
	loops    *LoopsConfig
}

func (c *Config) Server() *ServerConfig {
	return c.server
}

func (c *Config) Database() *DatabaseConfig {
	return c.database
}

func (c *Config) Storage() *StorageConfig {
	return c.storage
}

// Configuration for the ML engine client.
func (c *Config) Engine() *EngineConfig {
	return c.engine
}

func (c *Config) AutoML() *AutoMLConfig {
	return c.automl
}

func (c *Config) Loops() *LoopsConfig {
	return c.loops
}

type ServerConfig struct {
	port     int32
	logLevel string
	tls      *TLSConfig
}

// Port to listen. default = 8080
func (s *ServerConfig) Port() int32 {
	return s.port
}

// Log level of echo ("debug", "info", "warn", "error" or "off"). default = "info"
func (s *ServerConfig) LogLevel() string {
	return s.logLevel
}

// TLS configuration. nil when serving plain HTTP.
func (s *ServerConfig) TLS() *TLSConfig {
	return s.tls
}

type TLSConfig struct {
	cert string
	key  string
}

func (t *TLSConfig) Cert() string {
	return t.cert
}

func (t *TLSConfig) Key() string {
	return t.key
}

type DatabaseConfig struct {
	url string
}

// Connection string for database.
func (d *DatabaseConfig) URL() string {
	return d.url
}

type StorageConfig struct {
	dataRoot   string
	reportRoot string
}

// Directory where uploaded and imported dataset files are stored.
func (s *StorageConfig) DataRoot() string {
	return s.dataRoot
}

// Directory where AutoML comparison reports are written.
//
// default = "<dataRoot>/reports"
func (s *StorageConfig) ReportRoot() string {
	return s.reportRoot
}

type EngineConfig struct {
	url        string
	timeout    time.Duration
	signingKey []byte
	rateLimit  *RateLimitConfig
}

// API root of the ML engine, ending with "/api".
func (e *EngineConfig) URL() string {
	return e.url
}

// Timeout of each request. default = 30s
func (e *EngineConfig) Timeout() time.Duration {
	return e.timeout
}

// HS256 key to sign bearer tokens. Empty when the engine is not authenticated.
func (e *EngineConfig) SigningKey() []byte {
	return e.signingKey
}

// nil when requests are not limited.
func (e *EngineConfig) RateLimit() *RateLimitConfig {
	return e.rateLimit
}

type RateLimitConfig struct {
	rps   float64
	burst int
}

func (r *RateLimitConfig) RPS() float64 {
	return r.rps
}

func (r *RateLimitConfig) Burst() int {
	return r.burst
}

// Where AutoML jobs are run.
type AutoMLMode string

const (
	// The selector runs in mlengine and the engine scores each algorithm.
	Local AutoMLMode = "local"

	// The engine runs whole of the job.
	Remote AutoMLMode = "remote"
)

type AutoMLConfig struct {
	mode         AutoMLMode
	pollInterval time.Duration
	maxPolls     int
}

// default = "local"
func (a *AutoMLConfig) Mode() AutoMLMode {
	return a.mode
}

// Interval of polling remote jobs. default = 5s
func (a *AutoMLConfig) PollInterval() time.Duration {
	return a.pollInterval
}

// Remote jobs polled more than this are failed. default = 720
func (a *AutoMLConfig) MaxPolls() int {
	return a.maxPolls
}

// Recurring policies of loops, in the form of `forever[:COOLDOWN]`, `backlog` or `cron:SPEC`.
type LoopsConfig struct {
	automl          string
	datasetStats    string
	datasourceProbe string
}

// default = "forever:5s"
func (l *LoopsConfig) AutoML() string {
	return l.automl
}

// default = "forever:10m"
func (l *LoopsConfig) DatasetStats() string {
	return l.datasetStats
}

// default = "forever:15m"
func (l *LoopsConfig) DatasourceProbe() string {
	return l.datasourceProbe
}
