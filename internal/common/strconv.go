package common

import "strconv"

// AtoiDefault converts value to an integer, falling back to def when parsing fails.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// ParseBoolDefault interprets common truthy/falsy spellings, falling back to def.
func ParseBoolDefault(value string, def bool) bool {
	switch value {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return def
	}
}
