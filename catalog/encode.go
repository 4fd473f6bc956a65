package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Terms are encoded so that lexical order in the btree equals value order.
// Integers and times use fixed-width hex with the sign bit flipped.

func encodeInt(v int64) string {
	return fmt.Sprintf("%016x", uint64(v)^(1<<63))
}

// encodeTime orders by seconds, then nanoseconds. UnixNano would overflow
// outside 1678..2262, which includes the zero time.
func encodeTime(v time.Time) string {
	return encodeInt(v.Unix()) + fmt.Sprintf("%08x", v.Nanosecond())
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// tokenize splits text into lower-cased words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// flatten turns slice values into their elements.
func flatten(v any) []any {
	switch vv := v.(type) {
	case nil:
		return nil
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out
	case []int64:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out
	case []time.Time:
		out := make([]any, len(vv))
		for i, t := range vv {
			out[i] = t
		}
		return out
	default:
		return []any{v}
	}
}

// normalize converts a single raw value into the canonical Go type of the field:
// string, int64, time.Time or bool.
func normalize(field Field, v any) (any, error) {
	switch field.Type {
	case Keyword, Text:
		switch vv := v.(type) {
		case string:
			return vv, nil
		case fmt.Stringer:
			return vv.String(), nil
		}
	case Integer:
		switch vv := v.(type) {
		case int:
			return int64(vv), nil
		case int32:
			return int64(vv), nil
		case int64:
			return vv, nil
		case uint32:
			return int64(vv), nil
		case float64:
			if vv == math.Trunc(vv) {
				return int64(vv), nil
			}
		case json.Number:
			return vv.Int64()
		case string:
			return strconv.ParseInt(vv, 10, 64)
		}
	case Time:
		switch vv := v.(type) {
		case time.Time:
			return vv.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, vv)
			if err != nil {
				return nil, err
			}
			return t.UTC(), nil
		}
	case Bool:
		switch vv := v.(type) {
		case bool:
			return vv, nil
		case string:
			return strconv.ParseBool(vv)
		}
	}

	return nil, fmt.Errorf("value %v (%T) is not a valid %s", v, v, field.Type)
}

// encodeTerm returns the index term of a normalized, non-text value.
func encodeTerm(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case int64:
		return encodeInt(vv)
	case time.Time:
		return encodeTime(vv)
	case bool:
		return encodeBool(vv)
	default:
		return fmt.Sprint(vv)
	}
}

// queryTerm encodes a query operand against the field type.
func queryTerm(field Field, v any) (string, error) {
	n, err := normalize(field, v)
	if err != nil {
		return "", err
	}

	if field.Type == Text {
		return strings.Join(tokenize(n.(string)), " "), nil
	}
	return encodeTerm(n), nil
}

func postingKey(field, term string) string {
	return field + "\x00" + term
}
