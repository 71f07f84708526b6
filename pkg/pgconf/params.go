package pgconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

// startModes are the accepted tokens for the start file.
var startModes = map[string]bool{
	"auto":     true,
	"manual":   true,
	"disabled": true,
}

// FormatParameter renders one "name = value" line. Numbers and booleans
// render unquoted; strings render single-quoted with embedded single
// quotes doubled; lists of strings render comma-joined inside one pair
// of quotes. Any other value type is rejected.
func FormatParameter(name string, value any) (string, error) {
	rendered, err := renderValue(value)
	if err != nil {
		return "", err
	}
	return name + " = " + rendered + "\n", nil
}

func renderValue(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return quote(v), nil
	case []string:
		return quote(strings.Join(v, ",")), nil
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return "", errdefs.NewInvalidParameter(
					fmt.Sprintf("list parameter element %d is %T, not a string", i, e), value)
			}
			parts[i] = s
		}
		return quote(strings.Join(parts, ",")), nil
	default:
		return "", errdefs.NewInvalidParameter(
			fmt.Sprintf("unsupported parameter value type %T", value), value)
	}
}

// quote single-quotes a string value, doubling embedded single quotes
// the way the server's own file parser expects.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatStartMode renders the bare start-mode token for the start file,
// no key/value framing.
func FormatStartMode(mode string) (string, error) {
	if !startModes[mode] {
		return "", errdefs.NewInvalidParameter(
			fmt.Sprintf("start mode must be auto, manual, or disabled, got %q", mode), mode)
	}
	return mode + "\n", nil
}
