package connectors

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

func registerFiles() {
	register(&Kind{
		ID:          "csv",
		Name:        "CSV File",
		Description: "Local CSV file",
		Category:    CategoryFiles,
		Optional:    map[string]any{"encoding": "utf-8", "delimiter": ",", "has_header": true},
		label:       "CSV file",
		build:       newFileSource,
	})
	register(&Kind{
		ID:          "local_file",
		Name:        "Local File",
		Description: "Local data file (CSV, JSON)",
		Category:    CategoryFiles,
		Optional:    map[string]any{"encoding": "utf-8", "delimiter": ",", "has_header": true},
		label:       "local file",
		build:       newFileSource,
	})
}

func csvOptions(params map[string]any) frame.CSVOptions {
	opts := frame.CSVOptions{
		Encoding: paramString(params, "encoding", "utf-8"),
		NoHeader: !paramBool(params, "has_header", true),
	}
	if d := paramString(params, "delimiter", ","); d != "" {
		if d == `\t` {
			d = "\t"
		}
		opts.Delimiter = []rune(d)[0]
	}
	return opts
}

// readByExtension reads r as the format told by the extension of name.
//
// .json and .jsonl are JSON. .parquet is unsupported. Anything else is CSV.
func readByExtension(r io.Reader, name string, opts frame.CSVOptions, limit int) (*frame.Frame, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".parquet":
		return nil, xe.WrapWithNote(name, ErrUnsupportedFormat)
	case ".json", ".jsonl", ".ndjson":
		dr, err := frame.Decoder(r, opts.Encoding)
		if err != nil {
			return nil, err
		}
		f, err := frame.ReadJSON(dr)
		if err != nil {
			return nil, err
		}
		if 0 < limit {
			f = f.Head(limit)
		}
		return f, nil
	default:
		opts.MaxRows = max(limit, 0)
		return frame.ReadCSV(r, opts)
	}
}

type fileSource struct {
	path string
	opts frame.CSVOptions
}

func newFileSource(cfg Config) (source, error) {
	return &fileSource{path: cfg.QueryOrPath, opts: csvOptions(cfg.Params)}, nil
}

func (s *fileSource) open(context.Context) error {
	st, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return xe.Errorf("CSV file not found: %s", s.path)
	}
	if err != nil {
		return xe.Wrap(err)
	}
	if !st.Mode().IsRegular() {
		return xe.Errorf("Path is not a file: %s", s.path)
	}
	return nil
}

func (s *fileSource) close() error { return nil }

func (s *fileSource) probe(ctx context.Context) (map[string]any, error) {
	f, err := s.read(ctx, 5)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows_sampled": f.Len(), "columns": f.Width()}, nil
}

func (s *fileSource) read(_ context.Context, limit int) (*frame.Frame, error) {
	fp, err := os.Open(s.path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer fp.Close()
	return readByExtension(fp, s.path, s.opts, limit)
}
