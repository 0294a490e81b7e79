package aggregate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// thousands strips digit-group separators before parsing.
var thousands = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\u202f", "", "'", "")

// Coerce converts a cell value to a non-negative count. It never fails:
// blanks, unparsable text, NaN and infinities become 0 and negative values
// are clamped to 0.
func Coerce(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		f, _ := ParseCount(x)
		return f
	case float64:
		return clamp(x)
	case float32:
		return clamp(float64(x))
	case int:
		return clamp(float64(x))
	case int8:
		return clamp(float64(x))
	case int16:
		return clamp(float64(x))
	case int32:
		return clamp(float64(x))
	case int64:
		return clamp(float64(x))
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return clamp(f)
	default:
		return 0
	}
}

// ParseCount parses s strictly. ok is false for blank or unparsable input;
// otherwise the value is clamped like Coerce.
func ParseCount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = thousands.Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return clamp(f), true
}

func clamp(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
