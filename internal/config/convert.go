package config

import (
	"fmt"
	"strconv"
	"time"
)

// stringifyOptions renders TOML option values the way the controller expects
// them: every value is a string.
func stringifyOptions(in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for key, value := range in {
		switch v := value.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case time.Time:
			out[key] = v.Format(time.RFC3339)
		default:
			return nil, fmt.Errorf("%w: option %q has unsupported type %T", ErrInvalidDeployment, key, value)
		}
	}
	return out, nil
}
