// Package connectors reads tabular data out of files, databases,
// object stores and data warehouses into frames.
//
// Every kind of source is built by New from a Config whose SourceType is one of the tags
// listed by SupportedSources (aliases included).
package connectors

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

// SampleSeed is the seed used when Load samples rows down to Config.SampleSize.
const SampleSeed = 42

const (
	DefaultPreviewRows    = 10
	schemaPreviewRows     = 100
	statisticsPreviewRows = 1000
	sampleValuesPerColumn = 5
)

type Config struct {
	// SourceType is a tag of source kind, like "csv", "postgres" or "s3". Case insensitive.
	SourceType string

	// Params are kind specific connection parameters. See ParamsSchema.
	Params map[string]any

	// QueryOrPath is a SQL query, a file path or an object key, depending on the kind.
	QueryOrPath string

	// CacheEnabled keeps the frame once loaded until Disconnect.
	CacheEnabled bool

	// SampleSize caps rows of Load when positive.
	SampleSize int
}

// NewConfig returns a Config with defaults.
func NewConfig(sourceType string, queryOrPath string, params map[string]any) Config {
	if params == nil {
		params = map[string]any{}
	}
	return Config{
		SourceType:   sourceType,
		Params:       params,
		QueryOrPath:  queryOrPath,
		CacheEnabled: true,
	}
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type TestResult struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (t TestResult) OK() bool {
	return t.Status == StatusSuccess
}

type Schema struct {
	Columns  []string          `json:"columns"`
	DTypes   map[string]string `json:"dtypes"`
	Nullable map[string]bool   `json:"nullable"`
}

type Statistics struct {
	RowCount     int               `json:"row_count"`
	ColumnCount  int               `json:"column_count"`
	Columns      []string          `json:"columns"`
	DTypes       map[string]string `json:"dtypes"`
	NullCounts   map[string]int    `json:"null_counts"`
	SampleValues map[string][]any  `json:"sample_values"`
}

// Table is a table of a database or a data warehouse.
type Table struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

// QualifiedName is "schema.table", or the name alone when there is no schema.
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

var (
	// ErrBrowseUnsupported is returned when tables of the kind of source can not be listed,
	// like files and object stores.
	ErrBrowseUnsupported = errors.New("the data source has no tables to browse")

	// ErrInvalidTableName is returned for table names other than "table" or "schema.table".
	ErrInvalidTableName = errors.New("invalid table name")
)

type Connector interface {
	// Connect opens the source. Other methods connect lazily, so calling this is optional.
	Connect(ctx context.Context) error

	// Disconnect releases the source. It is safe to call more than once.
	Disconnect(ctx context.Context) error

	// TestConnection reports whether the source is reachable.
	//
	// Failures are reported in the result, not as an error.
	TestConnection(ctx context.Context) TestResult

	// Load reads the whole data.
	//
	// When Config.SampleSize is positive and rows exceed it,
	// rows are sampled with SampleSeed.
	Load(ctx context.Context) (*frame.Frame, error)

	// Schema describes columns, looking at the leading rows.
	Schema(ctx context.Context) (Schema, error)

	// Preview reads the first n rows.
	Preview(ctx context.Context, n int) (*frame.Frame, error)

	// Statistics summarises the leading rows.
	Statistics(ctx context.Context) (Statistics, error)

	// Tables lists tables in the source. It is ErrBrowseUnsupported unless the source is SQL.
	Tables(ctx context.Context) ([]Table, error)

	// PreviewTable reads the first n rows of a table, instead of the configured query.
	PreviewTable(ctx context.Context, table string, n int) (*frame.Frame, error)
}

// source is what a kind of connector has to implement.
type source interface {
	open(ctx context.Context) error
	close() error

	// probe checks the source is usable, returning details to be reported.
	probe(ctx context.Context) (map[string]any, error)

	// read reads up to limit rows. limit <= 0 means no limit.
	read(ctx context.Context, limit int) (*frame.Frame, error)
}

// browser is a source which has tables.
type browser interface {
	tables(ctx context.Context) ([]Table, error)
	readTable(ctx context.Context, table string, limit int) (*frame.Frame, error)
}

type connector struct {
	kind      *Kind
	config    Config
	src       source
	connected bool
	cached    *frame.Frame
}

var _ Connector = &connector{}

func (c *connector) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}
	if err := c.src.open(ctx); err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *connector) Disconnect(context.Context) error {
	c.cached = nil
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.src.close()
}

func (c *connector) TestConnection(ctx context.Context) TestResult {
	wasConnected := c.connected
	if err := c.Connect(ctx); err != nil {
		return TestResult{Status: StatusError, Message: rootMessage(err)}
	}
	if !wasConnected {
		defer c.Disconnect(ctx)
	}

	details, err := c.src.probe(ctx)
	if err != nil {
		return TestResult{Status: StatusError, Message: rootMessage(err)}
	}
	return TestResult{
		Status:  StatusSuccess,
		Message: "Successfully connected to " + c.kind.label,
		Details: details,
	}
}

func (c *connector) Load(ctx context.Context) (*frame.Frame, error) {
	if c.cached != nil {
		return c.cached, nil
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	limit := 0
	if c.kind.limitOnLoad {
		limit = c.config.SampleSize
	}
	f, err := c.src.read(ctx, limit)
	if err != nil {
		return nil, xe.WrapWithNote("failed to load "+c.kind.label, err)
	}
	if 0 < c.config.SampleSize && c.config.SampleSize < f.Len() {
		f = f.Sample(c.config.SampleSize, SampleSeed)
	}

	if c.config.CacheEnabled {
		c.cached = f
	}
	return f, nil
}

func (c *connector) Preview(ctx context.Context, n int) (*frame.Frame, error) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if c.cached != nil {
		return c.cached.Head(n), nil
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	f, err := c.src.read(ctx, n)
	if err != nil {
		return nil, xe.WrapWithNote("failed to preview "+c.kind.label, err)
	}
	return f.Head(n), nil
}

func (c *connector) Schema(ctx context.Context) (Schema, error) {
	f, err := c.Preview(ctx, schemaPreviewRows)
	if err != nil {
		return Schema{}, err
	}
	return SchemaOf(f), nil
}

func (c *connector) Statistics(ctx context.Context) (Statistics, error) {
	f, err := c.Preview(ctx, statisticsPreviewRows)
	if err != nil {
		return Statistics{}, err
	}
	return StatisticsOf(f), nil
}

func (c *connector) browser() (browser, error) {
	b, ok := c.src.(browser)
	if !ok {
		return nil, xe.WrapWithNote(c.kind.ID, ErrBrowseUnsupported)
	}
	return b, nil
}

func (c *connector) Tables(ctx context.Context) ([]Table, error) {
	b, err := c.browser()
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	ts, err := b.tables(ctx)
	if err != nil {
		return nil, xe.WrapWithNote("failed to list tables of "+c.kind.label, err)
	}
	return ts, nil
}

func (c *connector) PreviewTable(ctx context.Context, table string, n int) (*frame.Frame, error) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	b, err := c.browser()
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	f, err := b.readTable(ctx, table, n)
	if err != nil {
		return nil, xe.WrapWithNote("failed to preview table "+table, err)
	}
	return f.Head(n), nil
}

func SchemaOf(f *frame.Frame) Schema {
	s := Schema{
		Columns:  f.Columns(),
		DTypes:   map[string]string{},
		Nullable: map[string]bool{},
	}
	for name, n := range f.NullCounts() {
		s.Nullable[name] = 0 < n
	}
	for name, d := range f.DTypes() {
		s.DTypes[name] = d.String()
	}
	return s
}

func StatisticsOf(f *frame.Frame) Statistics {
	st := Statistics{
		RowCount:     f.Len(),
		ColumnCount:  f.Width(),
		Columns:      f.Columns(),
		DTypes:       map[string]string{},
		NullCounts:   f.NullCounts(),
		SampleValues: map[string][]any{},
	}
	dtypes := f.DTypes()
	head := f.Head(sampleValuesPerColumn)
	for _, name := range f.Columns() {
		st.DTypes[name] = dtypes[name].String()
		s, _ := head.Series(name)
		st.SampleValues[name] = s.Values
	}
	return st
}

// rootMessage is the message of the innermost error, without location marks.
func rootMessage(err error) string {
	for {
		var wc *xe.ErrWithCaller
		if !errors.As(err, &wc) {
			return err.Error()
		}
		inner := wc.Unwrap()
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}

// params helpers. Params come from JSON, so numbers may be float64 and flags may be strings.

func paramString(params map[string]any, key string, fallback string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return fallback
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func paramInt(params map[string]any, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		if x == "" {
			return fallback, nil
		}
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("parameter %s: not a number: %v", key, v)
}

func paramBool(params map[string]any, key string, fallback bool) bool {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return fallback
		}
		return b
	case float64:
		return x != 0
	}
	return fallback
}
