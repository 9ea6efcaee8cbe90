package frame

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	xe "github.com/opst/mlengine/pkg/errors"
)

// ReadJSON reads either a JSON array of objects or JSON lines (one object per line).
//
// Columns are ordered by their first appearance. Missing keys are nulls.
func ReadJSON(r io.Reader) (*Frame, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return Empty(), nil
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}

	dec := json.NewDecoder(br)
	var raws []json.RawMessage
	if first == '[' {
		if err := dec.Decode(&raws); err != nil {
			return nil, xe.Wrap(err)
		}
	} else {
		for {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, xe.WrapWithNote("json lines", err)
			}
			raws = append(raws, raw)
		}
	}

	columns := []string{}
	known := map[string]bool{}
	objs := make([]map[string]any, len(raws))
	for i, raw := range raws {
		keys, err := objectKeys(raw)
		if err != nil {
			return nil, xe.WrapWithNote("record "+itoa(i), err)
		}
		for _, k := range keys {
			if !known[k] {
				known[k] = true
				columns = append(columns, k)
			}
		}

		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		if err := d.Decode(&objs[i]); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	rows := make([][]any, len(objs))
	for i, o := range objs {
		row := make([]any, len(columns))
		for c, k := range columns {
			row[c] = flatten(o[k])
		}
		rows[i] = row
	}
	return FromRows(columns, rows)
}

var errNotObject = errors.New("record is not a JSON object")

// objectKeys lists the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	tok, err := d.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	keys := []string{}
	for d.More() {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))

		var skip json.RawMessage
		if err := d.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.Discard(1)
			continue
		}
		return b[0], nil
	}
}

// flatten keeps nested values as their JSON text.
func flatten(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return v
}

func itoa(i int) string {
	return Format(int64(i))
}
