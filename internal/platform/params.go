package platform

// Parameter maps arrive from JSON bodies and chain definitions, so numbers
// may be float64 and every lookup needs a type check. These helpers keep the
// adapters uniform.

// StringParam returns a non-empty string parameter.
func StringParam(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// OptString returns a string parameter or the default when absent or empty.
func OptString(params map[string]any, key, def string) string {
	if s, ok := StringParam(params, key); ok {
		return s
	}
	return def
}

// IntParam returns an integer parameter, accepting JSON's float64 encoding.
func IntParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// OptInt returns an integer parameter or the default when absent.
func OptInt(params map[string]any, key string, def int) int {
	if n, ok := IntParam(params, key); ok {
		return n
	}
	return def
}

// BoolParam returns a boolean parameter.
func BoolParam(params map[string]any, key string) (bool, bool) {
	b, ok := params[key].(bool)
	return b, ok
}

// MapParam returns a nested object parameter.
func MapParam(params map[string]any, key string) (map[string]any, bool) {
	m, ok := params[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	return m, true
}
