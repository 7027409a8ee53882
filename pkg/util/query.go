package util

import "strconv"

// ParseIntDefault parses a base-10 integer, returning def when s is empty, malformed
// or out of range for T.
func ParseIntDefault[T ~int | ~int32 | ~int64](s string, def T) T {
	if s == "" {
		return def
	}
	var zero T
	bits := 64
	switch any(zero).(type) {
	case int32:
		bits = 32
	}
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil || int64(T(v)) != v {
		return def
	}
	return T(v)
}
