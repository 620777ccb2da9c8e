package dispatch

import "fmt"

// stringParam and intParam decode a JSON-RPC params map (json.Unmarshal
// into map[string]any leaves numbers as float64) into the Go types
// handlers actually want, with a uniform "missing/wrong type" error so
// every tool reports malformed params the same way.

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string", key)
	}
	return s, nil
}

func optionalStringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing required param %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("param %q must be a number", key)
	}
	return int(f), nil
}

func optionalInt64Param(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func float32SliceParam(params map[string]any, key string) ([]float32, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("param %q must be an array of numbers", key)
	}
	out := make([]float32, len(raw))
	for i, elem := range raw {
		f, ok := elem.(float64)
		if !ok {
			return nil, fmt.Errorf("param %q[%d] must be a number", key, i)
		}
		out[i] = float32(f)
	}
	return out, nil
}
