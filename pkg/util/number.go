package util

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ParseFloat parses a decimal string as sent by exchange APIs ("0.00100000").
// An empty string is zero.
func ParseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", s, err)
	}
	return f, nil
}

// AsFloat accepts a JSON value decoded with UseNumber (string or json.Number).
func AsFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		return ParseFloat(x)
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

// AsInt accepts a JSON integer decoded with UseNumber, or its string form.
func AsInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	case float64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("unexpected integer type %T", v)
	}
}

// MillisToTime converts unix milliseconds to UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
