package frame

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// tokens read as null from text.
var nullTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "<NA>": {},
	"NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {},
}

func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.TrimSpace(s)]
	return ok
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true", "True", "TRUE":
		return true, true
	case "false", "False", "FALSE":
		return false, true
	}
	return false, false
}

func parseColumn(name string, cells []string) *Series {
	vals := make([]any, len(cells))
	present := make([]string, 0, len(cells))
	for i, c := range cells {
		if IsNullToken(c) {
			continue
		}
		vals[i] = c
		present = append(present, strings.TrimSpace(c))
	}

	if len(present) == 0 {
		return &Series{Name: name, DType: Float64, Values: vals}
	}

	try := func(parse func(string) (any, bool)) bool {
		parsed := make([]any, len(vals))
		for i, v := range vals {
			if v == nil {
				continue
			}
			p, ok := parse(strings.TrimSpace(v.(string)))
			if !ok {
				return false
			}
			parsed[i] = p
		}
		copy(vals, parsed)
		return true
	}

	switch {
	case try(func(s string) (any, bool) {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}):
		return &Series{Name: name, DType: Int64, Values: vals}
	case try(func(s string) (any, bool) {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsInf(f, 0)
	}):
		return &Series{Name: name, DType: Float64, Values: vals}
	case try(func(s string) (any, bool) { return parseBool(s) }):
		return &Series{Name: name, DType: Bool, Values: vals}
	case try(func(s string) (any, bool) { return parseTime(s) }):
		return &Series{Name: name, DType: Datetime, Values: vals}
	}
	return &Series{Name: name, DType: Object, Values: vals}
}

// typed infers the dtype of already normalised values.
func typed(name string, vals []any) *Series {
	var ints, floats, bools, times, others int
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			others++
		}
	}
	present := ints + floats + bools + times + others

	switch {
	case present == 0:
		return &Series{Name: name, DType: Float64, Values: vals}
	case ints == present:
		return &Series{Name: name, DType: Int64, Values: vals}
	case ints+floats == present:
		for i, v := range vals {
			if n, ok := v.(int64); ok {
				vals[i] = float64(n)
			}
		}
		return &Series{Name: name, DType: Float64, Values: vals}
	case bools == present:
		return &Series{Name: name, DType: Bool, Values: vals}
	case times == present:
		return &Series{Name: name, DType: Datetime, Values: vals}
	}
	return &Series{Name: name, DType: Object, Values: vals}
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return normalize(float64(x))
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return normalize(f)
		}
		return x.String()
	case bool, string, time.Time:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Format renders a cell as text, the way WriteCSV does.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case string:
		return x
	}
	return fmt.Sprint(v)
}
