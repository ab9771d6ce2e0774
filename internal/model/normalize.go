package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Normalize converts an attribute value to an integer by trimming the value's
// string form and parsing it as a base-10 integer. It reports false for
// absent (nil) values and for anything that does not parse. It never panics.
//
// Floats are formatted in their shortest form first, so a Real-typed 4.0
// normalizes to 4 while the text "4.0" and the float 4.5 are rejected. This
// knowingly departs from a plain parse of the value's default text, which
// renders 4.0 as "4.0" and would drop every Real-typed quintile column.
func Normalize(v any) (int, bool) {
	s, ok := textOf(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// textOf returns the string form of a scalar attribute value.
func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

// Text returns the trimmed string form of an attribute value, or "" if absent.
func Text(v any) string {
	s, ok := textOf(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
