package common

import "strconv"

// ParseInt64 converts a path or query parameter to an int64.
func ParseInt64(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

// AtoiDefault parses value as an int, returning def when the string is
// empty or malformed.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
