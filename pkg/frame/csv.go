package frame

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	xe "github.com/opst/mlengine/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

type CSVOptions struct {
	// Delimiter separates fields. Default is ','.
	Delimiter rune

	// Encoding is a WHATWG encoding label ("utf-8", "latin1", "shift_jis", ...).
	// Default is utf-8.
	Encoding string

	// NoHeader tells that the first record is data, not column names.
	// Columns are named "0", "1", ... then.
	NoHeader bool

	// MaxRows stops reading after this many data rows when positive.
	MaxRows int
}

var ErrUnknownEncoding = errors.New("unknown encoding")

// Decoder wraps r to decode text in the named encoding into UTF-8.
func Decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, xe.WrapWithNote(encoding, ErrUnknownEncoding)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	dr, err := Decoder(r, opts.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(dr)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.ReuseRecord = false
	if opts.Delimiter != 0 {
		if !utf8.ValidRune(opts.Delimiter) {
			return nil, xe.Errorf("invalid delimiter: %q", opts.Delimiter)
		}
		cr.Comma = opts.Delimiter
	}

	var header []string
	rows := [][]string{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xe.Wrap(err)
		}
		if header == nil && !opts.NoHeader {
			header = rec
			continue
		}
		if header == nil {
			header = make([]string, len(rec))
			for i := range header {
				header[i] = strconv.Itoa(i)
			}
		}
		rows = append(rows, rec)
		if 0 < opts.MaxRows && opts.MaxRows <= len(rows) {
			break
		}
	}

	if header == nil {
		return Empty(), nil
	}
	return fromStrings(header, rows), nil
}

// WriteCSV writes the frame with a header line.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.columns); err != nil {
		return xe.Wrap(err)
	}
	rec := make([]string, len(f.columns))
	for i := 0; i < f.rows; i++ {
		for c, name := range f.columns {
			rec[c] = Format(f.series[name].Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return xe.Wrap(err)
		}
	}
	cw.Flush()
	return xe.Wrap(cw.Error())
}
